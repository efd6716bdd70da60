package ports

import (
	"context"

	"github.com/aretw0/aoide/pkg/domain"
)

// Transport is the request/response exchange with one compute node.
type Transport interface {
	// FetchState reads path under the node URL and returns the sanitized object.
	FetchState(ctx context.Context, path string) (map[string]any, error)

	// Submit pushes a flattened field map. An empty process targets the spawn endpoint.
	Submit(ctx context.Context, process domain.ProcessRef, fields map[string]string) (domain.RawResult, error)

	// ResolveOperator returns the address of the node operator.
	ResolveOperator(ctx context.Context) (string, error)
}
