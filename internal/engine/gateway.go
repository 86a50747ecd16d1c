package engine

import (
	"context"

	"envman/internal/model"
)

// Gateway is the persistence boundary the controller reads from and writes to.
// Implementations report missing records with an error wrapping ErrNotFound.
type Gateway interface {
	List(ctx context.Context) ([]model.VariableRecord, error)
	Create(ctx context.Context, name, value string, scope model.Scope, note *string) (model.VariableRecord, error)
	Update(ctx context.Context, id, name, value string, scope model.Scope, note *string) error
	Delete(ctx context.Context, id string) error
	// ValidateAll never fails for a single record; such records are reported invalid.
	ValidateAll(ctx context.Context) ([]model.ValidationResult, error)
	Search(ctx context.Context, q model.SearchQuery) ([]model.VariableRecord, error)
	ExportAll(ctx context.Context) (string, error)
	ImportAll(ctx context.Context, source string) ([]model.VariableRecord, error)
}
