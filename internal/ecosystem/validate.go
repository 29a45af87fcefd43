package ecosystem

import (
	"fmt"
	"strings"

	"github.com/SrJuanF/UnitPoints-System/internal/validation"
)

// FieldError is one rejected address
type FieldError struct {
	Field string
	Value string
	Err   error
}

// InvalidAddressesError lists every address that failed validation
type InvalidAddressesError struct {
	Fields []FieldError
}

func (e *InvalidAddressesError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s (%v)", f.Field, f.Err)
	}
	return "invalid contract addresses: " + strings.Join(parts, ", ")
}

// FieldNames returns the offending field names in contract order
func (e *InvalidAddressesError) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return names
}

// ValidateAddresses rejects empty, placeholder, zero and malformed addresses.
// It returns *InvalidAddressesError listing every offending field.
func ValidateAddresses(a Addresses) error {
	var bad []FieldError
	for _, c := range Contracts {
		v := a.Get(c)
		if err := validation.ValidateContractAddress(v); err != nil {
			bad = append(bad, FieldError{Field: c.Field(), Value: v, Err: err})
		}
	}
	if len(bad) > 0 {
		return &InvalidAddressesError{Fields: bad}
	}
	return nil
}
