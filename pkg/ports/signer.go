package ports

import (
	"context"
	"net/http"
)

// Signer authorizes submit calls with the configured credential.
type Signer interface {
	// Address identifies the credential on the network.
	Address() string

	// SignRequest adds authorization headers for the given body.
	SignRequest(ctx context.Context, req *http.Request, body []byte) error
}
