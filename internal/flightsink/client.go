// Package flightsink ships reading tables over Arrow Flight and stores the
// tables it receives.
package flightsink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/23skdu/longbow-sysdiag/internal/arrowio"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
	"github.com/23skdu/longbow-sysdiag/internal/metrics"
	"github.com/23skdu/longbow-sysdiag/internal/table"
)

var ErrNotConnected = errors.New("client not connected, call Connect() first")

// Sink stores a named table.
type Sink interface {
	Put(ctx context.Context, name string, t *table.Table) error
}

// Client uploads tables to a Flight endpoint with DoPut. The descriptor path
// carries the table name.
type Client struct {
	client  flight.Client
	addr    string
	timeout time.Duration
}

func NewClient(addr string) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("flight address is empty")
	}
	return &Client{addr: addr, timeout: 30 * time.Second}, nil
}

// Connect establishes connection to Flight server
func (c *Client) Connect(ctx context.Context) error {
	client, err := flight.NewClientWithMiddlewareCtx(ctx, c.addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create Flight client: %w", err)
	}
	c.client = client
	return nil
}

// Close disconnects from Flight server
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Put sends t as a single record batch.
func (c *Client) Put(ctx context.Context, name string, t *table.Table) (err error) {
	defer func() { metrics.RecordFlightUpload(err) }()
	if c.client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stream, err := c.client.DoPut(ctx)
	if err != nil {
		return fmt.Errorf("failed to open DoPut stream: %w", err)
	}

	rec := arrowio.ToRecord(t, memory.DefaultAllocator)
	defer rec.Release()

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()))
	w.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{name},
	})
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("upload %s: %w", name, err)
		}
	}

	logger.Log.Debug("table uploaded", "name", name, "rows", t.Len(), "addr", c.addr)
	metrics.RecordRowsWritten("flight", t.Len())
	return nil
}
