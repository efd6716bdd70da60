package ports

import (
	"context"

	"github.com/aretw0/aoide/pkg/domain"
)

// EventSink receives log events. Implementations must not block.
type EventSink interface {
	Record(ctx context.Context, event domain.LogEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event domain.LogEvent)

func (f EventSinkFunc) Record(ctx context.Context, event domain.LogEvent) { f(ctx, event) }
