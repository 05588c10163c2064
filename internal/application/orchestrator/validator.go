package orchestrator

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/aescanero/batchflow/internal/stage"
	"github.com/aescanero/batchflow/pkg/domain"
)

// Validator validates workflow definitions and job submissions
type Validator struct {
	validate *validator.Validate
	resolver stage.Resolver
}

// NewValidator creates a validator. With a nil resolver stage ids are not
// checked for existence.
func NewValidator(resolver stage.Resolver) *Validator {
	return &Validator{
		validate: validator.New(),
		resolver: resolver,
	}
}

// Validate checks a workflow's fields and that every stage id resolves
func (v *Validator) Validate(wf *domain.Workflow) error {
	if wf == nil {
		return errors.New("workflow is nil")
	}
	if err := v.validate.Struct(wf); err != nil {
		return fmt.Errorf("invalid workflow: %w", err)
	}

	if v.resolver == nil {
		return nil
	}
	for i, id := range wf.Stages {
		if _, err := v.resolver.Resolve(id); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
	}
	if wf.ErrorStage != "" {
		if _, err := v.resolver.Resolve(wf.ErrorStage); err != nil {
			return fmt.Errorf("error stage: %w", err)
		}
	}
	return nil
}

// ValidateJob checks a full submission
func (v *Validator) ValidateJob(spec *domain.JobSpec) error {
	if spec == nil {
		return errors.New("job spec is nil")
	}
	if err := v.validate.Struct(spec); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	return v.Validate(&spec.Workflow)
}
