package ports

import (
	"context"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// Checkpointer defines the interface for persisting thread checkpoints.
// Implementations must be safe for concurrent use across distinct thread ids.
type Checkpointer interface {
	// Save persists the latest checkpoint for a thread.
	Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error

	// Load retrieves the latest checkpoint for a thread.
	// Returns domain.ErrThreadNotFound if the thread does not exist.
	Load(ctx context.Context, threadID string) (*domain.Checkpoint, error)

	// Delete removes a thread.
	Delete(ctx context.Context, threadID string) error

	// List returns all known thread ids.
	List(ctx context.Context) ([]string, error)
}

// HistoryReader is implemented by checkpointers that keep every saved version.
type HistoryReader interface {
	History(ctx context.Context, threadID string) ([]*domain.Checkpoint, error)
}
