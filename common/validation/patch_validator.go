package validation

import (
	"encoding/json"
	"fmt"
	"math"
)

// PatchValidator validates JSON merge patches against catalog entries.
// Only title and duration are client-editable.
type PatchValidator struct {
	editable map[string]func(json.RawMessage) error
}

// NewPatchValidator creates a new patch validator
func NewPatchValidator() *PatchValidator {
	return &PatchValidator{
		editable: map[string]func(json.RawMessage) error{
			"title":    validateTitle,
			"duration": validateDuration,
		},
	}
}

// ValidateMergePatch checks that doc is a JSON object touching only editable
// fields, with values of the right type. Fields cannot be removed with null.
func (v *PatchValidator) ValidateMergePatch(doc []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return fmt.Errorf("patch must be a JSON object: %w", err)
	}
	if len(fields) == 0 {
		return fmt.Errorf("patch is empty")
	}

	for name, raw := range fields {
		check, ok := v.editable[name]
		if !ok {
			return fmt.Errorf("field %q is not editable", name)
		}
		if string(raw) == "null" {
			return fmt.Errorf("field %q cannot be removed", name)
		}
		if err := check(raw); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}

	return nil
}

func validateTitle(raw json.RawMessage) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("must be a string")
	}
	return nil
}

func validateDuration(raw json.RawMessage) error {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("must be a number")
	}
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return fmt.Errorf("must be a whole number of seconds")
	}
	return nil
}
