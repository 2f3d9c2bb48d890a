package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/olgkv/drivefetch/internal/config"
	"github.com/olgkv/drivefetch/internal/download"
	"github.com/olgkv/drivefetch/internal/drive"
	"github.com/olgkv/drivefetch/internal/httpapi"
	"github.com/olgkv/drivefetch/internal/metrics"
	"github.com/olgkv/drivefetch/internal/ports"
	"github.com/olgkv/drivefetch/internal/progress"
	"github.com/olgkv/drivefetch/internal/service"
	"github.com/olgkv/drivefetch/internal/storage"
)

const (
	statusRPS   = 10
	statusBurst = 20

	plainProgressInterval = 2 * time.Second
)

// Options carries the per-run choices that are not part of the config file.
type Options struct {
	Out     io.Writer
	Plain   bool
	BaseURL string
}

// App holds the wired download pool and what the status server needs.
type App struct {
	Pool     *service.Pool
	Registry *prometheus.Registry
	History  *storage.History
	Logger   *slog.Logger
}

// NewLogger returns a slog logger backed by charmbracelet/log.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
	return slog.New(handler), nil
}

// New wires the pool and its collaborators from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = drive.DefaultBaseURL
	}

	client, err := NewHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	rec := metrics.New(reg)

	var reporter ports.ProgressReporter
	if opts.Plain || opts.Out == nil {
		reporter = progress.NewLog(logger, plainProgressInterval)
	} else {
		reporter = progress.NewConsole(opts.Out)
	}

	poolOpts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(rec),
		service.WithReporter(reporter),
	}

	a := &App{Registry: reg, Logger: logger}
	if cfg.HistoryFile != "" {
		a.History = storage.NewFileHistory(cfg.HistoryFile)
		records, err := a.History.Load()
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		logger.Debug("history loaded", "file", cfg.HistoryFile, "records", len(records))
		poolOpts = append(poolOpts, service.WithHistory(a.History))
	}

	resolver := drive.NewResolver(client, opts.BaseURL, cfg.UserAgent, logger)
	saver := download.New(cfg.ChunkSize, logger)
	a.Pool, err = service.New(cfg, resolver, saver, poolOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NewHTTPClient returns a client with a cookie jar and an optional proxy. It
// has no overall timeout; requests end through their context.
func NewHTTPClient(proxyStr string) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar}
	if proxyStr != "" {
		tr, err := newProxyTransport(proxyStr)
		if err != nil {
			return nil, fmt.Errorf("proxy %q: %w", proxyStr, err)
		}
		client.Transport = tr
	}
	return client, nil
}

func newProxyTransport(proxyStr string) (*http.Transport, error) {
	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	switch proxyURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
		if err != nil {
			return nil, err
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks dialer does not support contexts")
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return cd.DialContext(ctx, network, addr)
		}
	default:
		return nil, fmt.Errorf("unsupported proxy type: %s", proxyURL.Scheme)
	}
	return transport, nil
}

// NewStatusServer serves /tasks and /metrics on addr.
func (a *App) NewStatusServer(addr string) *http.Server {
	h := httpapi.NewHandler(a.Pool)
	limiter := rate.NewLimiter(rate.Limit(statusRPS), statusBurst)

	mux := http.NewServeMux()
	mux.Handle("/tasks", rateLimitMiddleware(limiter, loggingMiddleware(a.Logger, http.HandlerFunc(h.Tasks))))
	mux.Handle("/metrics", rateLimitMiddleware(limiter, loggingMiddleware(a.Logger,
		promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r)

		logger.Debug("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"latency_ms", time.Since(start).Milliseconds(),
			"status", lw.statusCode,
		)
	})
}

func rateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}
