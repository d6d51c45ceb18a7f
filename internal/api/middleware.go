package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camrelay/internal/logging"
)

const (
	corsAllowMethods = "GET, HEAD, OPTIONS"
	corsAllowHeaders = "Content-Type, Accept, Origin, Cache-Control, Last-Event-ID"
	corsMaxAge       = "86400"
)

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
}

// corsMiddleware lets browser dashboards on other origins read the API.
// Everything served is read-only.
func corsMiddleware(ctx huma.Context, next func(huma.Context)) {
	ctx.SetHeader("Access-Control-Allow-Origin", "*")
	ctx.SetHeader("Access-Control-Allow-Methods", corsAllowMethods)
	ctx.SetHeader("Access-Control-Allow-Headers", corsAllowHeaders)
	ctx.SetHeader("Access-Control-Max-Age", corsMaxAge)
	next(ctx)
}

// addPreflightHandler answers OPTIONS for every path. Huma middleware only
// runs for registered operations, so preflights need their own route.
func addPreflightHandler(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header())
		w.WriteHeader(http.StatusNoContent)
	})
}

// HTTPLoggingMiddleware logs each request once it completes. Streaming
// endpoints are logged when the consumer detaches, with the full session
// duration.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", clientIP(ctx)),
	}
	if query := ctx.URL().RawQuery; query != "" {
		attrs = append(attrs, slog.String("query", query))
	}
	if ua := ctx.Header("User-Agent"); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	level := slog.LevelInfo
	switch {
	case status >= 500 && status != http.StatusServiceUnavailable:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case ctx.URL().Path == "/health":
		level = slog.LevelDebug
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}
