package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// structValidator consumes the validate tags on the model structs. All
// Validate methods run it before their cross-field checks.
var structValidator = validator.New(validator.WithRequiredStructEnabled())

// WorkflowDefinition identifies a schedulable workflow: its master package,
// optional fallback package, exclusivity requirement, takeover window rule
// and timeplan reference. Definitions are read-only to the scheduling core.
type WorkflowDefinition struct {
	ID                int64  `json:"id"                validate:"required"`
	Name              string `json:"name"              validate:"required,min=3"`
	MasterPackageID   int64  `json:"master_package_id" validate:"required"`
	FallbackPackageID *int64 `json:"fallback_package_id,omitempty"`

	// Exclusive requires the workflow-level lock for the whole run.
	Exclusive bool `json:"exclusive"`

	// TakeoverFrom/TakeoverTo bound the data takeover range explicitly.
	// When absent, a rolling window of TakeoverDays back from the run start
	// is used instead.
	TakeoverFrom *time.Time `json:"takeover_from,omitempty"`
	TakeoverTo   *time.Time `json:"takeover_to,omitempty"`
	TakeoverDays int        `json:"takeover_days" validate:"min=0"`

	TimeplanID   int64 `json:"timeplan_id" validate:"required"`
	DatasourceID int64 `json:"datasource_id"`
	Active       bool  `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrInvalidDefinition is returned when definition validation fails.
var ErrInvalidDefinition = errors.New("invalid workflow definition")

// Validate performs structural validation of the definition fields.
func (d *WorkflowDefinition) Validate() error {
	if err := structValidator.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	if d.FallbackPackageID != nil && *d.FallbackPackageID == 0 {
		return ErrInvalidDefinition
	}

	if (d.TakeoverFrom == nil) != (d.TakeoverTo == nil) {
		return ErrInvalidDefinition
	}

	return nil
}

// TakeoverWindow resolves the takeover date range for a run starting at now:
// the explicit bounds when present, otherwise TakeoverDays back from now.
func (d *WorkflowDefinition) TakeoverWindow(now time.Time) (time.Time, time.Time) {
	if d.TakeoverFrom != nil && d.TakeoverTo != nil {
		return *d.TakeoverFrom, *d.TakeoverTo
	}

	return now.AddDate(0, 0, -d.TakeoverDays), now
}
