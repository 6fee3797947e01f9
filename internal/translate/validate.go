package translate

import (
	"fmt"
	"strings"
)

// FieldError is one failed requirement. Index is -1 for the fact table and
// the dimension position otherwise.
type FieldError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (fe FieldError) Error() string {
	if fe.Index < 0 {
		return fmt.Sprintf("factConf.%s: %s", fe.Field, fe.Message)
	}
	return fmt.Sprintf("dimConf[%d].%s: %s", fe.Index, fe.Field, fe.Message)
}

// Validation is the structured outcome of Validate
type Validation struct {
	Success bool         `json:"success"`
	Errors  []FieldError `json:"errors"`
}

// Err returns the validation as an error, or nil on success
func (v Validation) Err() error {
	if v.Success {
		return nil
	}
	return &ValidationError{Errors: v.Errors}
}

// ValidationError wraps failed validation for callers that need an error
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = "  - " + fe.Error()
	}
	return "validation failed:\n" + strings.Join(msgs, "\n")
}

// Validate checks that the fact has an id and name and that every dimension
// has its table and join field chosen. Invalid dimensions are reported, not
// dropped.
func Validate(w Working) Validation {
	v := Validation{Errors: []FieldError{}}

	required := func(index int, field, value string) {
		if strings.TrimSpace(value) == "" {
			v.Errors = append(v.Errors, FieldError{Index: index, Field: field, Message: "is required"})
		}
	}

	required(-1, "id", w.Fact.ID)
	required(-1, "cnName", w.Fact.CNName)

	for i, d := range w.Dims {
		required(i, "id", d.ID)
		required(i, "cnName", d.CNName)
		required(i, "dimFieldId", d.DimFieldID)
		required(i, "dimFieldCNName", d.DimFieldCNName)
		if !d.Side.Valid() {
			v.Errors = append(v.Errors, FieldError{Index: i, Field: "side", Message: "must be left, right or empty"})
		}
	}

	v.Success = len(v.Errors) == 0
	return v
}

// ValidateForSave is Validate plus the requirement that there is at least one
// dimension. The persisted form keeps the fact only inside its join records,
// so a configuration without joins cannot be stored.
func ValidateForSave(w Working) Validation {
	v := Validate(w)
	if len(w.Dims) == 0 {
		v.Errors = append(v.Errors, FieldError{Index: -1, Field: "dimensions", Message: "at least one dimension is required"})
		v.Success = false
	}
	return v
}
