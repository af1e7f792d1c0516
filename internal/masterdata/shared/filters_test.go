package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListFiltersNormalize(t *testing.T) {
	f := ListFilters{}.Normalize()
	require.Equal(t, DefaultPage, f.Page)
	require.Equal(t, DefaultLimit, f.Limit)
	require.Zero(t, f.Offset())

	f = ListFilters{Page: 3, Limit: 1000}.Normalize()
	require.Equal(t, MaxLimit, f.Limit)
	require.Equal(t, 2*MaxLimit, f.Offset())

	require.Equal(t, "DESC", SortDirection("desc"))
	require.Equal(t, "ASC", SortDirection("anything"))
}
