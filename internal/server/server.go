package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"aigist/internal/action"
	"aigist/internal/config"
	"aigist/internal/gist"
	"aigist/internal/gistsync"
	"aigist/internal/llm"
	oai "aigist/internal/llm/openai"
	mylog "aigist/internal/log"
	"aigist/internal/store"
)

const shutdownGrace = 5 * time.Second

type API struct {
	gists   *gistsync.Service
	llm     llm.Completer
	actions *action.Dispatcher
	log     *mylog.Logger
	metrics *metricsCollector
}

func NewAPI(g *gistsync.Service, c llm.Completer, lg *mylog.Logger) *API {
	if lg == nil {
		lg = mylog.Discard()
	}
	return &API{
		gists:   g,
		llm:     c,
		actions: action.NewDispatcher(g, lg.With(map[string]string{"component": "action"})),
		log:     lg.With(map[string]string{"component": "http"}),
		metrics: newMetrics(),
	}
}

func (a *API) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /metrics", a.handleMetrics)
	mux.HandleFunc("POST /gists", a.handleCreateGist)
	mux.HandleFunc("GET /gists", a.handleListGists)
	mux.HandleFunc("PATCH /gists/{id}", a.handleUpdateGist)
	mux.HandleFunc("POST /chat", a.handleChat)
	mux.HandleFunc("POST /chat/gist", a.handleChatGist)
	return mux
}

// Handler returns the routed API wrapped in access logging and, when rps > 0, rate limiting.
func (a *API) Handler(rps float64) http.Handler {
	return a.logMiddleware(rateLimitMiddleware(rps, a.mux()))
}

// Run opens the mirror store, builds the upstream clients and serves until
// ctx is cancelled or the process receives SIGINT/SIGTERM.
func Run(ctx context.Context, cfg config.Config, lg *mylog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	st, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open mirror store: %w", err)
	}
	defer st.Close()
	if err := st.Check(ctx); err != nil {
		return fmt.Errorf("mirror store check: %w", err)
	}
	completer, err := oai.New(oai.Options{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.HTTPTimeout,
	})
	if err != nil {
		return fmt.Errorf("completion client: %w", err)
	}
	remote := gist.New(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.HTTPTimeout)
	api := NewAPI(gistsync.New(remote, st, lg.With(map[string]string{"component": "gistsync"})), completer, lg)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(cfg.RateLimitRPS),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()
	lg.Info("server.start", "addr", cfg.Addr, "db", cfg.DBPath, "model", cfg.LLMModel)

	// graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		lg.Info("server.shutdown", "reason", context.Cause(ctx).Error())
		return srv.Shutdown(sctx)
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
