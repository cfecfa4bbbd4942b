package dataset

import (
	"fmt"
	"strings"

	"loanrecovery/pkg/contracts/domain"
)

// SchemaError lists the required columns an upload is missing.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("The uploaded file is missing the following required columns: %s",
		strings.Join(e.Missing, ", "))
}

// MissingColumns returns the names in required that the table header lacks,
// in required order. The result is empty when the table is valid.
func MissingColumns(t *Table, required []string) []string {
	missing := []string{}
	for _, name := range required {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// ValidateSchema checks the table against the full borrower column set.
func ValidateSchema(t *Table) error {
	if missing := MissingColumns(t, domain.RequiredColumns()); len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}
