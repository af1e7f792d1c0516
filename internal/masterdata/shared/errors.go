package shared

import core "github.com/odyssey-erp/odyssey-wms/internal/shared"

var (
	ErrInvalidID     = core.Kind(core.ErrValidation, "invalid ID")
	ErrRequiredField = core.Kind(core.ErrValidation, "field is required")
)
