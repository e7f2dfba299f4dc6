package journal

import (
	"encoding/json"
	"fmt"

	"PerpIndexer/internal/entity"
)

// Validator checks action log invariants before a record is written.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate ensures the record has an identity, a tag from the closed
// vocabulary and a params object whose values are strings or booleans.
func (v *Validator) Validate(rec *entity.OrderAction) error {
	if rec.ID == "" {
		return fmt.Errorf("order action has empty id")
	}
	if _, err := ParseTag(rec.Action); err != nil {
		return fmt.Errorf("order action %s: %w", rec.ID, err)
	}
	if rec.Transaction == "" {
		return fmt.Errorf("order action %s has empty transaction", rec.ID)
	}

	var params map[string]interface{}
	if err := json.Unmarshal([]byte(rec.Params), &params); err != nil {
		return fmt.Errorf("order action %s: params is not a JSON object: %w", rec.ID, err)
	}
	for name, value := range params {
		switch value.(type) {
		case string, bool:
		default:
			return fmt.Errorf("order action %s: param %q has non-string value %v", rec.ID, name, value)
		}
	}
	return nil
}
