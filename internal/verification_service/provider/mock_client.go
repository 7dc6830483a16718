package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/veritel/golang_services/internal/verification_service/domain"
)

// MockLookupClient is a test implementation of LookupClient.
type MockLookupClient struct {
	logger         *slog.Logger
	name           string
	FailLookup     bool          // Simulate an upstream failure
	InvalidNumbers map[string]bool // Numbers to report as confirmed invalid
	LineType       string
	SimulatedDelay time.Duration
}

// NewMockLookupClient creates a new MockLookupClient.
func NewMockLookupClient(logger *slog.Logger, name string) *MockLookupClient {
	return &MockLookupClient{
		logger:   logger.With("provider", name),
		name:     name,
		LineType: "mobile",
	}
}

// Validate simulates a lookup call.
func (c *MockLookupClient) Validate(ctx context.Context, number string) (*domain.ValidationResult, error) {
	if c.SimulatedDelay > 0 {
		time.Sleep(c.SimulatedDelay)
	}

	if c.FailLookup {
		c.logger.WarnContext(ctx, "MockLookupClient: simulated lookup failure", "number", number)
		return nil, errors.New("mock provider simulated lookup failure")
	}

	if c.InvalidNumbers[number] {
		return nil, nil
	}

	return &domain.ValidationResult{
		Number:              number,
		Valid:               true,
		InternationalFormat: number,
		CountryCode:         "US",
		CountryName:         "United States of America",
		Carrier:             "Mock Carrier",
		LineType:            c.LineType,
	}, nil
}

// GetName returns the name of the provider.
func (c *MockLookupClient) GetName() string {
	return c.name
}
