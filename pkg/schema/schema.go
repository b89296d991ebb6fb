// Package schema validates workflows against the embedded JSON Schema and the
// struct rules declared on the models.
package schema

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/dukex/refiner/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed workflow.schema.json
var workflowSchema []byte

// Validator checks workflows before they enter or leave a refinement cycle.
type Validator struct {
	schema   *gojsonschema.Schema
	validate *validator.Validate
}

// New compiles the embedded workflow schema.
func New() (*Validator, error) {
	return NewWithSchema(workflowSchema)
}

// NewWithSchema compiles a caller-supplied JSON Schema document instead of the
// embedded one.
func NewWithSchema(document []byte) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow schema: %w", err)
	}

	return &Validator{
		schema:   compiled,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Validate reports whether the workflow satisfies both the struct rules and the
// JSON Schema, with one message per violation.
func (v *Validator) Validate(workflow *models.Workflow) (bool, []string) {
	if workflow == nil {
		return false, []string{"workflow is nil"}
	}

	var problems []string

	if err := v.validate.Struct(workflow); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fieldErr := range validationErrors {
				problems = append(problems, fmt.Sprintf("%s: failed on %s", fieldErr.Namespace(), fieldErr.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(workflow))
	if err != nil {
		return false, append(problems, err.Error())
	}

	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return len(problems) == 0, problems
}
