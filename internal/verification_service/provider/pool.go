package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/veritel/golang_services/internal/verification_service/domain"
)

// ErrNoClients indicates a pool was constructed without any credentials.
var ErrNoClients = errors.New("provider pool has no clients")

// Pool dispatches lookup calls across a set of provider credentials in strict
// round-robin order. The cursor advances one position per call regardless of
// outcome and is shared by all concurrent callers of a run.
type Pool struct {
	clients []LookupClient
	cursor  uint32
	logger  *slog.Logger
}

func NewPool(clients []LookupClient, logger *slog.Logger) (*Pool, error) {
	if len(clients) == 0 {
		return nil, ErrNoClients
	}
	return &Pool{
		clients: clients,
		logger:  logger.With("component", "provider_pool"),
	}, nil
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	return len(p.clients)
}

func (p *Pool) next() LookupClient {
	idx := atomic.AddUint32(&p.cursor, 1) - 1
	return p.clients[idx%uint32(len(p.clients))]
}

// Validate runs one lookup on the next client in rotation. There is no retry
// and no failover: an upstream failure makes the number unverifiable for this
// attempt and is reported as ErrProviderCall. A (nil, nil) return means the
// provider confirmed the number as invalid.
func (p *Pool) Validate(ctx context.Context, number string) (*domain.ValidationResult, error) {
	client := p.next()
	result, err := client.Validate(ctx, number)
	if err != nil {
		p.logger.WarnContext(ctx, "Provider lookup failed",
			"provider", client.GetName(), "number", number, "error", err)
		return nil, fmt.Errorf("%w (%s): %v", domain.ErrProviderCall, client.GetName(), err)
	}
	return result, nil
}
