package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/camrelay/internal/api/models"
	"github.com/smazurov/camrelay/internal/capture"
	"github.com/smazurov/camrelay/internal/events"
	"github.com/smazurov/camrelay/internal/framebuf"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/smazurov/camrelay/internal/records"
	"github.com/smazurov/camrelay/internal/version"
	"github.com/smazurov/camrelay/ui"
)

// StatusSource reports the capture session state. *capture.Session
// implements it.
type StatusSource interface {
	Status() capture.SessionStatus
}

// Options wires the server to the rest of the process.
type Options struct {
	Frames  *framebuf.Buffer
	Session StatusSource
	Bus     *events.Bus
	// RecordsPath is re-read on every records or stats request.
	RecordsPath string
	Labels      *records.LabelMap
	// StreamPoll is the wait between checks while /video_feed has nothing
	// new to send; StreamPacing is the wait after each part.
	StreamPoll   time.Duration
	StreamPacing time.Duration
	// PrometheusHandler is mounted at /metrics when set.
	PrometheusHandler http.Handler
}

// Server is the HTTP surface: frame endpoints, status and the records API.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	mjpeg      *MJPEGWriter
	logger     *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer builds the API and registers every route.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()
	addPreflightHandler(mux)

	config := huma.DefaultConfig("camrelay API", version.String())
	config.Info.Description = "Latest-frame relay for an RTSP camera"
	config.Servers = []*huma.Server{}
	// Responses are plain JSON without $schema links.
	config.CreateHooks = nil

	api := humago.New(mux, config)
	baseCtx, cancel := context.WithCancel(context.Background())

	server := &Server{
		api:        api,
		mux:        mux,
		options:    opts,
		mjpeg:      NewMJPEGWriter(opts.Frames, opts.StreamPoll, opts.StreamPacing),
		logger:     logging.GetLogger("api"),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	server.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	api.UseMiddleware(corsMiddleware)
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	dashboard := ui.Handler()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		dashboard.ServeHTTP(w, r)
	})

	return server
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves on addr until Shutdown. It returns nil after a clean
// shutdown, including one that happened before Start was called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.logger.Info("Starting camrelay API server", "addr", ln.Addr().String())
	s.logger.Info("OpenAPI documentation available", "url", "http://"+ln.Addr().String()+"/docs")

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown ends streaming responses, then waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	s.cancelBase()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health",
		Description: "Liveness and whether a frame is available. Never touches the camera.",
		Tags:        []string{"health"},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{OK: true, HasFrame: s.options.Frames.HasFrame()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				BuildID:   info.BuildID,
				GoVersion: info.GoVersion,
				Compiler:  info.Compiler,
				Platform:  info.Platform,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Capture status",
		Description: "Connection state, active candidate and counters of the capture session",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		return &models.StatusResponse{Body: s.options.Session.Status()}, nil
	})

	s.registerFrameRoutes()
	s.registerRecordRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}

// clientIP prefers proxy headers over the socket address.
func clientIP(ctx huma.Context) string {
	if xff := strings.TrimSpace(ctx.Header("X-Forwarded-For")); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(ctx.Header("X-Real-IP")); xri != "" {
		return xri
	}
	addr := ctx.RemoteAddr()
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}
