package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chronoflow/chronoflow/pkg/models"
	"github.com/chronoflow/chronoflow/pkg/persistence"
)

// timeplanRepository stores the timeplan rows per reference id. A file holds
// every row sharing that id so ambiguous references stay detectable, the way
// the unconstrained source table allowed them.
type timeplanRepository struct {
	root string
}

func (tr *timeplanRepository) dir() string {
	return filepath.Join(tr.root, "timeplans")
}

func (tr *timeplanRepository) path(id int64) string {
	return filepath.Join(tr.dir(), strconv.FormatInt(id, 10)+".json")
}

func (tr *timeplanRepository) GetByID(_ context.Context, id int64) (*models.Timeplan, error) {
	rows, err := tr.read(id)
	if err != nil {
		return nil, err
	}

	switch len(rows) {
	case 0:
		return nil, persistence.NewStoreError("TimeplanByID", 0, persistence.ErrTimeplanNotFound)
	case 1:
		return rows[0], nil
	default:
		return nil, persistence.NewStoreError("TimeplanByID", 0, persistence.ErrTimeplanAmbiguous)
	}
}

// Save replaces the rows stored for the timeplan's id.
func (tr *timeplanRepository) Save(_ context.Context, timeplan *models.Timeplan) error {
	return tr.write(timeplan.ID, []*models.Timeplan{timeplan})
}

// Append adds a row without replacing existing ones, producing an ambiguous
// reference on purpose.
func (tr *timeplanRepository) Append(id int64, timeplan *models.Timeplan) error {
	rows, err := tr.read(id)
	if err != nil {
		return err
	}

	return tr.write(id, append(rows, timeplan))
}

func (tr *timeplanRepository) read(id int64) ([]*models.Timeplan, error) {
	data, err := os.ReadFile(tr.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read timeplan %d: %w", id, err)
	}

	var rows []*models.Timeplan
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode timeplan %d: %w", id, err)
	}

	return rows, nil
}

func (tr *timeplanRepository) write(id int64, rows []*models.Timeplan) error {
	if err := os.MkdirAll(tr.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create timeplans directory: %w", err)
	}

	encoded, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode timeplan %d: %w", id, err)
	}

	if err := os.WriteFile(tr.path(id), encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write timeplan %d: %w", id, err)
	}

	return nil
}
