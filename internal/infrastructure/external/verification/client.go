// Package verification is the client of the external company verification
// service used by POST /verify-company.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/pkg/circuitbreaker"
	"github.com/eduhub/eduhub-dashboard/pkg/retry"
)

// ErrNotConfigured is returned by Unconfigured.
var ErrNotConfigured = errors.New("company verification is not configured")

// Request is the verification payload.
type Request struct {
	CompanyName        string `json:"companyName"`
	Website            string `json:"website,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
}

// Validate checks the required fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.CompanyName) == "" {
		return shared.NewDomainError(shared.DomainVerification, "Validate", shared.ErrEmptyValue, "companyName is required")
	}
	return nil
}

// Result is relayed unchanged to the caller.
type Result struct {
	Verified    bool   `json:"verified"`
	CompanyName string `json:"companyName"`
	Reason      string `json:"reason,omitempty"`
}

// Verifier verifies companies.
type Verifier interface {
	Verify(ctx context.Context, req Request) (*Result, error)
}

// Unconfigured is used when no verification service is set up.
type Unconfigured struct{}

func (Unconfigured) Verify(context.Context, Request) (*Result, error) {
	return nil, ErrNotConfigured
}

// Config contains configuration for the verification client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client posts to {BaseURL}/verify.
type Client struct {
	config     Config
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	logger     *zap.Logger
}

// NewClient creates a new verification client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	logger = logger.Named("verification")

	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.VerificationBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}),
		retrier: retry.New(
			retry.WithMaxAttempts(2),
			retry.WithInitialDelay(100*time.Millisecond),
			retry.WithJitter(0.1),
			retry.WithRetryIf(func(err error) bool {
				var netErr net.Error
				return errors.As(err, &netErr) || errors.Is(err, errServer)
			}),
		),
		logger: logger,
	}
}

var errServer = errors.New("verification service error")

// Verify asks the collaborator to verify a company.
func (c *Client) Verify(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	var result Result
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.post(ctx, payload, &result)
		})
	})
	if err != nil {
		c.logger.Warn("company verification failed", zap.String("company", req.CompanyName), zap.Error(err))
		return nil, shared.WrapError(shared.DomainVerification, "Verify", shared.ErrExternalService, "verification request failed", err)
	}

	if result.CompanyName == "" {
		result.CompanyName = req.CompanyName
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, payload []byte, out *Result) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", errServer, resp.StatusCode)
	case resp.StatusCode >= 300:
		return retry.Permanent(fmt.Errorf("verification rejected: status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}

var _ Verifier = (*Client)(nil)
