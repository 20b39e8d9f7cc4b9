// internal/common/camunda/client.go
package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"loan-intake/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client starts loan workflow processes and hands the raw Zeebe client to job workers.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds retries of transient gateway failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
}

// NewClientWithConfig dials the gateway and checks the broker topology once.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zc, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zc, config: config}
	if err := c.HealthCheck(context.Background()); err != nil {
		zc.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}
	return c, nil
}

// GetClient returns the raw Zeebe client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// StartProcess creates an instance of the latest deployed version of processID
// and returns its instance key.
func (c *Client) StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	return withRetry(ctx, c.config.RetryConfig, "start "+processID, func(ctx context.Context) (int64, error) {
		cmd, err := c.client.NewCreateInstanceCommand().
			BPMNProcessId(processID).
			LatestVersion().
			VariablesFromObject(variables)
		if err != nil {
			return 0, errors.NewWorkflowStartFailedError(processID, err)
		}
		resp, err := cmd.Send(ctx)
		if err != nil {
			return 0, err
		}
		return resp.GetProcessInstanceKey(), nil
	})
}

// HealthCheck asks the gateway for the broker topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

type failureKind int

const (
	failPermanent failureKind = iota
	failTransient
	failTimeout
	failMissing
	failConflict
)

// withRetry runs fn with exponential backoff while failures are transient and
// maps the final failure to a StandardError.
func withRetry[T any](ctx context.Context, rc *RetryConfig, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := rc.BaseDelay

	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if errors.HasCode(err, errors.ErrCodeWorkflowStartFailed) {
			return zero, err
		}

		kind := classify(err)
		if (kind != failTransient && kind != failTimeout) || attempt >= rc.MaxRetries {
			return zero, mapFailure(kind, op, attempt+1, err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, errors.NewTimeoutError("zeebe", fmt.Errorf("%s cancelled after %d attempts: %w", op, attempt+1, ctx.Err()))
		}
		if delay *= 2; delay > rc.MaxDelay {
			delay = rc.MaxDelay
		}
	}
}

func classify(err error) failureKind {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return failTimeout
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
			return failTransient
		case codes.DeadlineExceeded:
			return failTimeout
		case codes.NotFound:
			return failMissing
		case codes.AlreadyExists:
			return failConflict
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "deadline exceeded", "timeout"):
		return failTimeout
	case containsAny(msg, "connection refused", "connection reset", "unavailable", "unreachable", "broken pipe"):
		return failTransient
	case strings.Contains(msg, "not found"):
		return failMissing
	case strings.Contains(msg, "already exists"):
		return failConflict
	}
	return failPermanent
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func mapFailure(kind failureKind, op string, attempts int, err error) error {
	wrapped := fmt.Errorf("%s failed after %d attempt(s): %w", op, attempts, err)
	switch kind {
	case failTimeout:
		return errors.NewTimeoutError("zeebe", wrapped)
	case failMissing:
		return errors.NewWorkflowStartFailedError(op, wrapped)
	case failConflict:
		return errors.NewBusinessRuleError(wrapped.Error(), "Process instance already exists")
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
