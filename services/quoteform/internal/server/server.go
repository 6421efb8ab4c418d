package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/southernunderground/quoteform/libs/components/quoteform"
	"github.com/southernunderground/quoteform/libs/shared/config"
	"github.com/southernunderground/quoteform/libs/shared/httpx"
	"github.com/southernunderground/quoteform/libs/shared/logging"
	"github.com/southernunderground/quoteform/libs/shared/observability"
)

// Options are the collaborators of the HTTP server.
type Options struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Registry    *prometheus.Registry
	Sender      quoteform.Sender
	Coordinator quoteform.SubmissionCoordinator
}

// Server bundles the HTTP server with the sessions it serves.
type Server struct {
	HTTP     *httpx.Server
	Sessions *quoteform.SessionManager
}

// ControllerOptions translates the submit settings of cfg.
func ControllerOptions(cfg *config.AppConfig) ([]quoteform.Option, error) {
	policy, err := quoteform.ParseErrorPolicy(cfg.ErrorPolicy)
	if err != nil {
		return nil, err
	}
	if cfg.SubmitRetries < 0 {
		return nil, fmt.Errorf("SUBMIT_RETRIES must not be negative, got %d", cfg.SubmitRetries)
	}
	return []quoteform.Option{
		quoteform.WithResetDelay(cfg.ResetDelay),
		quoteform.WithErrorPolicy(policy),
		quoteform.WithSendTimeout(cfg.SubmitTimeout),
		quoteform.WithRetries(cfg.SubmitRetries),
	}, nil
}

// New constructs the quote form HTTP server.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("server: config is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("server: sender is required")
	}
	log := logging.OrNop(opts.Logger)
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	ctrlOpts, err := ControllerOptions(opts.Config)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewSubmissionMetrics(registry)
	sessions := quoteform.NewSessionManager(opts.Sender,
		quoteform.WithSessionTTL(opts.Config.SessionTTL),
		quoteform.WithSessionObserver(metrics),
		quoteform.WithSessionLogger(log.Named("sessions")),
		quoteform.WithControllerOptions(ctrlOpts...),
	)

	handlerOpts := []quoteform.HandlerOption{quoteform.WithHandlerLogger(log.Named("http"))}
	if opts.Coordinator != nil {
		handlerOpts = append(handlerOpts, quoteform.WithSubmissionCoordinator(opts.Coordinator))
	}

	srv := httpx.New(log)
	observability.RegisterMetricsEndpoint(srv.Router, registry)
	srv.Router.Route("/api", func(api chi.Router) {
		api.Get("/overview", overviewHandler(opts.Config, sessions))
		quoteform.NewHandler(sessions, handlerOpts...).Mount(api, "/quote-sessions")
	})

	return &Server{HTTP: srv, Sessions: sessions}, nil
}

func overviewHandler(cfg *config.AppConfig, sessions *quoteform.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"service":        cfg.ServiceName,
			"sender":         cfg.Sender,
			"activeSessions": sessions.Len(),
			"resetDelay":     cfg.ResetDelay.String(),
			"errorPolicy":    cfg.ErrorPolicy,
		}})
	}
}
