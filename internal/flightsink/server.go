package flightsink

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/23skdu/longbow-sysdiag/internal/arrowio"
	"github.com/23skdu/longbow-sysdiag/internal/logger"
)

// Server accepts DoPut uploads and hands each table to a Sink under the
// name given by the descriptor path.
type Server struct {
	flight.BaseFlightServer

	sink   Sink
	srv    flight.Server
	health *health.Server
}

func NewServer(sink Sink) *Server {
	return &Server{sink: sink, health: health.NewServer()}
}

// Listen binds addr and registers the Flight and gRPC health services.
func (s *Server) Listen(addr string) error {
	s.srv = flight.NewServerWithMiddleware(nil)
	if err := s.srv.Init(addr); err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.srv.RegisterFlightService(s)
	grpc_health_v1.RegisterHealthServer(s.srv, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	return nil
}

func (s *Server) Addr() net.Addr {
	return s.srv.Addr()
}

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	return s.srv.Serve()
}

func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.srv.Shutdown()
}

func descriptorName(d *flight.FlightDescriptor) (string, error) {
	if d == nil || d.Type != flight.DescriptorPATH || len(d.Path) == 0 {
		return "", errors.New("descriptor must be a non-empty path")
	}
	return strings.Join(d.Path, "_"), nil
}

func (s *Server) DoPut(stream flight.FlightService_DoPutServer) error {
	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "read stream: %v", err)
	}
	defer rdr.Release()

	name, err := descriptorName(rdr.LatestFlightDescriptor())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	var recs []arrow.Record
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return status.Errorf(codes.Internal, "read %s: %v", name, err)
	}

	t, err := arrowio.FromRecords(rdr.Schema(), recs...)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "decode %s: %v", name, err)
	}
	if err := s.sink.Put(stream.Context(), name, t); err != nil {
		return status.Errorf(codes.Internal, "store %s: %v", name, err)
	}
	logger.Log.Info("table received", "name", name, "rows", t.Len(), "columns", t.Width())
	return stream.Send(&flight.PutResult{})
}
