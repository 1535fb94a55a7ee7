package stockmove

import (
	"mfgerp/internal/core/apperror"
	"mfgerp/internal/core/types"
)

func parseQty(raw string, lineNo int) (types.Quantity, error) {
	qty, err := types.ParseQuantity(raw)
	if err != nil {
		return types.Zero(), apperror.NewValidation("quantity is not a decimal number").
			WithDetail("field", "lines").
			WithDetail("lineNo", lineNo).
			WithDetail("qty", raw)
	}
	return qty, nil
}

func invalidFilter(field, value string) error {
	return apperror.NewValidation("invalid filter value").
		WithDetail("field", field).
		WithDetail("value", value)
}
