package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoflow/chronoflow/pkg/models"
)

func validDefinition() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:              1,
		Name:            "nightly sales load",
		MasterPackageID: 10,
		TimeplanID:      1,
		Active:          true,
	}
}

func TestWorkflowDefinitionValidate(t *testing.T) {
	require.NoError(t, validDefinition().Validate())

	tests := []struct {
		name   string
		mutate func(d *models.WorkflowDefinition)
	}{
		{"missing id", func(d *models.WorkflowDefinition) { d.ID = 0 }},
		{"name too short", func(d *models.WorkflowDefinition) { d.Name = "ab" }},
		{"missing master package", func(d *models.WorkflowDefinition) { d.MasterPackageID = 0 }},
		{"missing timeplan", func(d *models.WorkflowDefinition) { d.TimeplanID = 0 }},
		{"negative takeover days", func(d *models.WorkflowDefinition) { d.TakeoverDays = -1 }},
		{"zero fallback package", func(d *models.WorkflowDefinition) {
			zero := int64(0)
			d.FallbackPackageID = &zero
		}},
		{"half-open takeover bounds", func(d *models.WorkflowDefinition) {
			from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
			d.TakeoverFrom = &from
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			definition := validDefinition()
			tt.mutate(definition)

			assert.ErrorIs(t, definition.Validate(), models.ErrInvalidDefinition)
		})
	}
}

func TestTimeplanValidate(t *testing.T) {
	start := time.Date(2026, time.March, 2, 6, 30, 0, 0, time.UTC)

	valid := &models.Timeplan{ID: 1, Kind: models.TimeplanDaily, Start: start}
	require.NoError(t, valid.Validate())

	missingStart := &models.Timeplan{ID: 1, Kind: models.TimeplanDaily}
	assert.ErrorIs(t, missingStart.Validate(), models.ErrInvalidTimeplan)

	missingID := &models.Timeplan{Kind: models.TimeplanDaily, Start: start}
	assert.ErrorIs(t, missingID.Validate(), models.ErrInvalidTimeplan)

	weekOutOfRange := &models.Timeplan{ID: 1, Kind: models.TimeplanManual, Start: start, WeekOfMonth: 6}
	assert.ErrorIs(t, weekOutOfRange.Validate(), models.ErrInvalidTimeplan)

	ambiguous := &models.Timeplan{
		ID: 1, Kind: models.TimeplanManual, Start: start,
		DayRepetitions: 2, WeekRepetitions: 1,
	}
	assert.ErrorIs(t, ambiguous.Validate(), models.ErrAmbiguousRepetition)
}
