package concept

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var indexSchema []byte

// ErrInvalidIndex indicates an index file that does not conform to the
// concept index schema.
var ErrInvalidIndex = errors.New("concept index does not match schema")

// validateIndex checks the raw index document against the embedded schema
// before any decoding happens. Violations are joined into one error so the
// operator sees every problem at once.
func validateIndex(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(indexSchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validate concept index: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidIndex, strings.Join(violations, "; "))
}
