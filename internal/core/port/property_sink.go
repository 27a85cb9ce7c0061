package port

import (
	"context"

	"estate-parser-service/internal/core/domain"

	"github.com/google/uuid"
)

// PropertySinkPort receives every merged Property exactly once.
// Append-only: no update or delete is ever requested.
type PropertySinkPort interface {
	Emit(ctx context.Context, property domain.Property, taskID uuid.UUID) error
}
