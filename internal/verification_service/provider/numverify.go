package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/veritel/golang_services/internal/verification_service/domain"
)

// LookupClient validates a single phone number against an upstream provider.
// A nil result with a nil error means the provider confirmed the number as
// invalid; errors mean the attempt itself failed.
type LookupClient interface {
	Validate(ctx context.Context, number string) (*domain.ValidationResult, error)
	GetName() string
}

// NumverifyClient calls a NumVerify-compatible lookup API with one access key.
type NumverifyClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	accessKey  string
	name       string
}

func NewNumverifyClient(logger *slog.Logger, apiURL, accessKey, name string, httpClient *http.Client) *NumverifyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &NumverifyClient{
		logger:     logger.With("provider", name),
		httpClient: httpClient,
		apiURL:     apiURL,
		accessKey:  accessKey,
		name:       name,
	}
}

// numverifyResponse is the raw lookup payload. Key errors come back with
// HTTP 200 and success=false, so Success is checked separately from Valid.
type numverifyResponse struct {
	Valid               bool   `json:"valid"`
	Number              string `json:"number"`
	LocalFormat         string `json:"local_format"`
	InternationalFormat string `json:"international_format"`
	CountryPrefix       string `json:"country_prefix"`
	CountryCode         string `json:"country_code"`
	CountryName         string `json:"country_name"`
	Location            string `json:"location"`
	Carrier             string `json:"carrier"`
	LineType            string `json:"line_type"`

	Success *bool `json:"success,omitempty"`
	Error   *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error,omitempty"`
}

func (c *NumverifyClient) Validate(ctx context.Context, number string) (*domain.ValidationResult, error) {
	endpoint := fmt.Sprintf("%s/validate?access_key=%s&number=%s",
		c.apiURL, url.QueryEscape(c.accessKey), url.QueryEscape(number))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.WarnContext(ctx, "Lookup request failed", "number", number, "error", err)
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup response (status %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "Lookup returned non-2xx status", "number", number, "status_code", httpResp.StatusCode)
		return nil, fmt.Errorf("lookup API error: status %d", httpResp.StatusCode)
	}

	var payload numverifyResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse lookup response: %w", err)
	}

	if payload.Success != nil && !*payload.Success {
		info := ""
		if payload.Error != nil {
			info = payload.Error.Info
		}
		c.logger.WarnContext(ctx, "Lookup rejected by provider", "number", number, "info", info)
		return nil, fmt.Errorf("lookup API rejected request: %s", info)
	}

	if !payload.Valid {
		// Confirmed invalid, not an error.
		c.logger.DebugContext(ctx, "Number confirmed invalid", "number", number)
		return nil, nil
	}

	if payload.Number == "" {
		payload.Number = number
	}

	return &domain.ValidationResult{
		Number:              payload.Number,
		Valid:               true,
		LocalFormat:         payload.LocalFormat,
		InternationalFormat: payload.InternationalFormat,
		CountryCode:         payload.CountryCode,
		CountryName:         payload.CountryName,
		Location:            payload.Location,
		Carrier:             payload.Carrier,
		LineType:            payload.LineType,
	}, nil
}

func (c *NumverifyClient) GetName() string {
	return c.name
}
