package shared

const (
	// Default pagination
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 200

	// Sort directions
	SortAsc  = "asc"
	SortDesc = "desc"
)

// SortDirection maps the query value to SQL.
func SortDirection(dir string) string {
	if dir == SortDesc {
		return "DESC"
	}
	return "ASC"
}
