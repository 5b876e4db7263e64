package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/chronoflow/chronoflow/pkg/models"
)

// definitionRepository stores workflow definitions as one JSON file per id.
type definitionRepository struct {
	root string
}

func (dr *definitionRepository) dir() string {
	return filepath.Join(dr.root, "definitions")
}

func (dr *definitionRepository) List(_ context.Context, active bool) ([]*models.WorkflowDefinition, error) {
	if err := os.MkdirAll(dr.dir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create definitions directory: %w", err)
	}

	entries, err := fs.Glob(os.DirFS(dr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list definition files: %w", err)
	}

	definitions := make([]*models.WorkflowDefinition, 0, len(entries))

	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(dr.dir(), entry))
		if err != nil {
			return nil, fmt.Errorf("failed to read definition file %s: %w", entry, err)
		}

		var definition models.WorkflowDefinition
		if err := json.Unmarshal(data, &definition); err != nil {
			return nil, fmt.Errorf("failed to decode definition file %s: %w", entry, err)
		}

		if definition.Active == active {
			definitions = append(definitions, &definition)
		}
	}

	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].ID < definitions[j].ID
	})

	return definitions, nil
}

func (dr *definitionRepository) Save(_ context.Context, definition *models.WorkflowDefinition) error {
	if err := definition.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(dr.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create definitions directory: %w", err)
	}

	data, err := json.MarshalIndent(definition, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode definition %d: %w", definition.ID, err)
	}

	path := filepath.Join(dr.dir(), strconv.FormatInt(definition.ID, 10)+".json")

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write definition %d: %w", definition.ID, err)
	}

	return nil
}
