package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"mediafetch/internal/domain"
	"mediafetch/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type CreateJobUseCase interface {
	Execute(ctx context.Context, input usecase.CreateJobInput) (domain.DownloadJob, error)
}

type JobStatusUseCase interface {
	Execute(ctx context.Context, id domain.JobID) (map[string]any, error)
}

type DeleteJobUseCase interface {
	Execute(ctx context.Context, id domain.JobID) (bool, error)
}

type ResolveVideoUseCase interface {
	Execute(ctx context.Context, url string) (usecase.ResolveVideoResult, error)
}

// FileFetcher serves token-addressed artifact reads.
type FileFetcher interface {
	GetByToken(ctx context.Context, token domain.DownloadToken) (domain.DownloadedFile, error)
	Content(file domain.DownloadedFile) ([]byte, error)
}

// RequestLimiter enforces the configured counter dimensions for one
// client address.
type RequestLimiter interface {
	CheckAndIncrement(ctx context.Context, ip domain.ClientIP, limits ...domain.RateLimit) (domain.RateLimitStatus, error)
}

// HealthChecker reports whether a critical dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// LimitSettings holds the per-dimension caps the job-creation and
// metadata endpoints enforce. Zero values disable a dimension.
type LimitSettings struct {
	BatchMinute     int64
	VideoOnlyDaily  int64
	AudioOnlyDaily  int64
	VideoAudioDaily int64
	TotalJobsDaily  int64
	// EndpointHourly maps a request path to its hourly cap.
	EndpointHourly map[string]int64
}

type Server struct {
	createJob      CreateJobUseCase
	jobStatus      JobStatusUseCase
	deleteJob      DeleteJobUseCase
	resolveVideo   ResolveVideoUseCase
	files          FileFetcher
	limiter        RequestLimiter
	limits         LimitSettings
	health         HealthChecker
	allowedOrigins []string
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
}

type ServerOption func(*Server)

func WithJobStatus(uc JobStatusUseCase) ServerOption {
	return func(s *Server) {
		s.jobStatus = uc
	}
}

func WithDeleteJob(uc DeleteJobUseCase) ServerOption {
	return func(s *Server) {
		s.deleteJob = uc
	}
}

func WithResolveVideo(uc ResolveVideoUseCase) ServerOption {
	return func(s *Server) {
		s.resolveVideo = uc
	}
}

func WithFiles(files FileFetcher) ServerOption {
	return func(s *Server) {
		s.files = files
	}
}

func WithLimiter(limiter RequestLimiter, limits LimitSettings) ServerOption {
	return func(s *Server) {
		s.limiter = limiter
		s.limits = limits
	}
}

func WithHealth(checker HealthChecker) ServerOption {
	return func(s *Server) {
		s.health = checker
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(create CreateJobUseCase, opts ...ServerOption) *Server {
	s := &Server{
		createJob: create,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger, s.cancelJob)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/videos/resolutions", s.handleResolutions)
	mux.HandleFunc("/api/v1/downloads", s.handleDownloads)
	mux.HandleFunc("/api/v1/downloads/", s.handleDownloads)
	mux.HandleFunc("/api/v1/downloads/file/", s.handleFileByToken)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobByID)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "mediafetch",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health" && !strings.HasPrefix(p, "/ws")
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(100, 200, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// EventHandler bridges domain events onto WebSocket rooms. Register it
// on the bus for every event kind.
func (s *Server) EventHandler() func(domain.Event) {
	return func(event domain.Event) {
		switch e := event.(type) {
		case domain.JobProgressUpdatedEvent:
			s.wsHub.emitProgress(e)
		case domain.JobCompletedEvent:
			s.wsHub.emitCompleted(e)
		case domain.JobFailedEvent:
			s.wsHub.emitFailed(e)
		case domain.JobCancelledEvent:
			s.wsHub.emitCancelled(e)
		}
	}
}

// cancelJob backs the ws cancel_job message. The cancellation event
// reaches the room through the bus bridge, not from the hub itself.
func (s *Server) cancelJob(ctx context.Context, id domain.JobID) (bool, error) {
	if s.deleteJob == nil {
		return false, nil
	}
	return s.deleteJob.Execute(ctx, id)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := newWSClient(s.wsHub, conn)
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// Close disconnects all WebSocket clients and stops the hub.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}
