package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"PerpIndexer/internal/core"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/ingestion"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/pricing"
	"PerpIndexer/internal/query"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

const maxIngestBody = 1 << 20

// Server hosts the gRPC health service and the HTTP/JSON query API. The
// HTTP routes are registered on a grpc-gateway runtime mux so errors are
// rendered as gRPC status bodies with the matching HTTP code.
type Server struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	healthServer  *health.Server
	gateway       *runtime.ServeMux
	grpcAddr      string
	httpAddr      string
	healthChecker *observability.HealthChecker
	query         *query.QueryService
	ingest        *ingestion.IngestService
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// ServerDeps holds all dependencies needed by the API.
type ServerDeps struct {
	QueryService  *query.QueryService
	IngestService *ingestion.IngestService // nil disables POST /v1/events
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
	Logger        zerolog.Logger
}

// NewServer creates the gRPC server and registers every HTTP route.
func NewServer(grpcAddr, httpAddr string, deps *ServerDeps) (*Server, error) {
	grpcServer := grpc.NewServer()

	// Health check
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	s := &Server{
		grpcServer:    grpcServer,
		healthServer:  healthServer,
		gateway:       runtime.NewServeMux(),
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		healthChecker: deps.HealthChecker,
		query:         deps.QueryService,
		ingest:        deps.IngestService,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) registerRoutes() error {
	routes := []struct {
		method, pattern, name string
		fn                    apiFunc
	}{
		{"GET", "/v1/positions", "list_positions", s.listPositions},
		{"GET", "/v1/positions/{key}", "get_position", s.getPosition},
		{"GET", "/v1/actions/{id}", "get_action", s.getAction},
		{"GET", "/v1/transactions/{hash}", "get_transaction", s.getTransaction},
		{"GET", "/v1/prices/{token}", "get_price", s.getPrice},
		{"GET", "/v1/stats/{period}/{timestamp}", "get_stats", s.getStats},
		{"GET", "/v1/archive", "list_archive", s.listArchive},
	}
	if s.ingest != nil {
		routes = append(routes, struct {
			method, pattern, name string
			fn                    apiFunc
		}{"POST", "/v1/events/{type}", "ingest_event", s.ingestEvent})
	}

	for _, rt := range routes {
		if err := s.gateway.HandlePath(rt.method, rt.pattern, s.wrap(rt.name, rt.fn)); err != nil {
			return fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return nil
}

// Handler returns the full HTTP handler: health endpoints plus the API.
func (s *Server) Handler() http.Handler {
	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	} else {
		httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok"}`)
		})
	}
	httpMux.Handle("/", s.gateway)
	return httpMux
}

// StartGRPC starts the gRPC server (blocking).
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go s.watchHealth(ctx)
	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("gRPC server shutting down")
		s.healthServer.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	s.logger.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP/JSON API (blocking).
func (s *Server) StartHTTP(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.httpAddr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// watchHealth mirrors the readiness flags into the gRPC health service.
func (s *Server) watchHealth(ctx context.Context) {
	if s.healthChecker == nil {
		s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		s.syncHealth()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) syncHealth() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.healthChecker.IsReady() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", st)
}

// ============================================================================
// Route plumbing
// ============================================================================

type apiFunc func(r *http.Request, params map[string]string) (interface{}, error)

func (s *Server) wrap(name string, fn apiFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		start := time.Now()
		resp, err := fn(r, params)

		code := codes.OK
		if err != nil {
			code = codeFor(err)
			if code == codes.Internal {
				s.logger.Error().Err(err).Str("route", name).Msg("query failed")
			}
			_, outbound := runtime.MarshalerForRequest(s.gateway, r)
			runtime.HTTPError(r.Context(), s.gateway, outbound, w, r, status.Error(code, err.Error()))
		} else {
			w.Header().Set("Content-Type", "application/json")
			if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
				s.logger.Warn().Err(encErr).Str("route", name).Msg("write response")
			}
		}

		if s.metrics != nil {
			s.metrics.QueryRequests.WithLabelValues(name, code.String()).Inc()
			s.metrics.QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}
}

// codeFor maps domain errors onto gRPC codes; the gateway turns those
// into HTTP statuses.
func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, query.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, query.ErrInvalidArgument), ingestion.IsMalformed(err), errors.Is(err, core.ErrInvalidEvent):
		return codes.InvalidArgument
	case errors.Is(err, query.ErrUnavailable):
		return codes.Unavailable
	case errors.Is(err, core.ErrHalted), errors.Is(err, core.ErrAheadOfCheckpoint),
		errors.Is(err, pricing.ErrUnsupportedToken):
		return codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

func intParam(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", query.ErrInvalidArgument, name, err)
	}
	return v, nil
}

// ============================================================================
// Handlers
// ============================================================================

func (s *Server) listPositions(r *http.Request, _ map[string]string) (interface{}, error) {
	limit, err := intParam(r, "limit")
	if err != nil {
		return nil, err
	}
	return s.query.ListPositions(r.Context(), r.URL.Query().Get("after"), int(limit))
}

func (s *Server) getPosition(r *http.Request, params map[string]string) (interface{}, error) {
	return s.query.GetPosition(r.Context(), params["key"])
}

func (s *Server) getAction(r *http.Request, params map[string]string) (interface{}, error) {
	return s.query.GetAction(r.Context(), params["id"])
}

func (s *Server) getTransaction(r *http.Request, params map[string]string) (interface{}, error) {
	return s.query.GetTransaction(r.Context(), params["hash"])
}

func (s *Server) getPrice(r *http.Request, params map[string]string) (interface{}, error) {
	return s.query.GetPrice(r.Context(), params["token"])
}

func (s *Server) getStats(r *http.Request, params map[string]string) (interface{}, error) {
	ts, err := strconv.ParseInt(params["timestamp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", query.ErrInvalidArgument, err)
	}
	return s.query.GetStats(r.Context(), params["period"], ts)
}

func (s *Server) listArchive(r *http.Request, _ map[string]string) (interface{}, error) {
	var (
		after event.Cursor
		err   error
	)
	if after.BlockNumber, err = intParam(r, "block"); err != nil {
		return nil, err
	}
	if after.TxIndex, err = intParam(r, "tx"); err != nil {
		return nil, err
	}
	if after.LogIndex, err = intParam(r, "log"); err != nil {
		return nil, err
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		return nil, err
	}
	return s.query.ListArchive(r.Context(), after, int(limit))
}

// IngestResponse acknowledges a manually injected event after the engine
// replayed it.
type IngestResponse struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Cursor    event.Cursor `json:"cursor"`
}

func (s *Server) ingestEvent(r *http.Request, params map[string]string) (interface{}, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", query.ErrInvalidArgument, err)
	}
	if len(body) > maxIngestBody {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", query.ErrInvalidArgument, maxIngestBody)
	}

	evt, err := s.ingest.Inject(r.Context(), params["type"], body)
	if err != nil {
		return nil, err
	}
	ref := evt.Reference()
	s.logger.Info().
		Str("event_id", core.IdentityOf(ref)).
		Str("event_type", evt.EventType().String()).
		Msg("manual event replayed")

	return &IngestResponse{
		EventID:   core.IdentityOf(ref),
		EventType: evt.EventType().String(),
		Cursor:    ref.Cursor(),
	}, nil
}
