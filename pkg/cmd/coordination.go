package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/chronoflow/chronoflow/pkg/coordination"
)

// NewCoordinator selects the coordination backend from its URL: redis URLs
// get the shared backend, anything else the in-process one.
func NewCoordinator(ctx context.Context, coordinationURL string, capacity int) coordination.Coordinator {
	if strings.HasPrefix(coordinationURL, "redis://") || strings.HasPrefix(coordinationURL, "rediss://") {
		coordinator, err := coordination.NewRedisCoordinator(ctx, coordinationURL, capacity)
		if err != nil {
			panic(fmt.Errorf("failed to create redis coordinator: %w", err))
		}

		return coordinator
	}

	return coordination.NewMemoryCoordinator(capacity)
}
