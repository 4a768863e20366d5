// internal/common/camunda/client.go
package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lifelink-workers/internal/common/config"
	"lifelink-workers/internal/common/errors"
)

// Client wraps the Zeebe gRPC client used by the job workers.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
}

// ClientConfigFrom maps the camunda section of the application config.
func ClientConfigFrom(cfg config.CamundaConfig) *ClientConfig {
	return &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: cfg.Plaintext,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         config.GetDuration(cfg.RequestTimeout),
	}
}

// NewClientWithConfig dials the gateway and checks the topology before
// returning, so a misconfigured broker address fails at startup.
func NewClientWithConfig(cfg *ClientConfig) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, brokerError(fmt.Errorf("connect to Zeebe broker at %s: %w", cfg.GatewayAddress, err))
	}

	return &Client{
		client: zeebeClient,
		config: cfg,
	}, nil
}

// GetClient returns the raw Zeebe client for job polling.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the gateway for its topology within RequestTimeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return brokerError(fmt.Errorf("zeebe health check failed: %w", err))
	}
	return nil
}

// Ping lets the client take part in readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.HealthCheck(ctx)
}

// brokerError classifies a gateway error by its gRPC status code.
func brokerError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewBrokerTimeoutError(err)
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return errors.NewBrokerTimeoutError(err)
	case codes.NotFound, codes.AlreadyExists, codes.PermissionDenied, codes.Unauthenticated, codes.InvalidArgument:
		return errors.NewBrokerRejectedError(err)
	default:
		return errors.NewBrokerUnavailableError(err)
	}
}
