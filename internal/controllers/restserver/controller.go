// Package restserver serves charts over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/birthchart/internal/chart"
	"github.com/chrissnell/birthchart/internal/constants"
	"github.com/chrissnell/birthchart/internal/storage"
	"github.com/chrissnell/birthchart/pkg/config"
	"github.com/chrissnell/birthchart/pkg/ephemeris"
	"github.com/chrissnell/birthchart/pkg/houses"
	"github.com/chrissnell/birthchart/pkg/metrics"
)

// Options configure a Controller.
type Options struct {
	Server config.ServerData
	Chart  chart.Options
	// DefaultHouseSystem is used when a request names none.
	DefaultHouseSystem houses.System
	// Fileset identifies the ephemeris data files, reported by /healthz.
	Fileset string
}

// Controller represents the REST server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	Server   http.Server
	provider ephemeris.Provider
	store    storage.ChartStore
	metrics  *metrics.Collector
	opts     Options
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewController creates a new REST server controller. store may be nil, in
// which case charts are computed but never archived.
func NewController(ctx context.Context, wg *sync.WaitGroup, provider ephemeris.Provider, store storage.ChartStore,
	collector *metrics.Collector, opts Options, logger *zap.SugaredLogger) (*Controller, error) {
	if provider == nil {
		return nil, fmt.Errorf("REST server needs an ephemeris provider")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if collector == nil {
		collector = metrics.NewCollector(constants.MetricsNamespace)
	}
	if opts.DefaultHouseSystem == 0 {
		opts.DefaultHouseSystem = houses.Placidus
	}
	if !opts.DefaultHouseSystem.Valid() {
		return nil, fmt.Errorf("invalid default house system %q", opts.DefaultHouseSystem.String())
	}
	if opts.Server.ListenAddr == "" {
		logger.Info("server.listen_addr not provided; defaulting to all interfaces")
	}
	if opts.Server.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
	}

	ctrl := &Controller{
		ctx:      ctx,
		wg:       wg,
		provider: provider,
		store:    store,
		metrics:  collector,
		opts:     opts,
		logger:   logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = opts.Server.Addr()
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("starting chart server on %s", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.opts.Server.Cert != "" && c.opts.Server.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.opts.Server.Cert, c.opts.Server.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Handler returns the router, for use without a listening server.
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.requestMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/charts", c.handlers.CreateChart).Methods(http.MethodPost)
	api.HandleFunc("/charts", c.handlers.ListCharts).Methods(http.MethodGet)
	api.HandleFunc("/charts/{id}", c.handlers.GetChart).Methods(http.MethodGet)
	api.HandleFunc("/julday", c.handlers.GetJulianDay).Methods(http.MethodGet)
	api.HandleFunc("/house-systems", c.handlers.GetHouseSystems).Methods(http.MethodGet)

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", c.metrics.Handler()).Methods(http.MethodGet)

	return router
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestMiddleware logs each request and records its metrics under the
// route template, so chart IDs do not explode the label space.
func (c *Controller) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		route := req.URL.Path
		if cur := mux.CurrentRoute(req); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		timer := c.metrics.NewTimer(c.metrics.APIRequestDuration.WithLabelValues(route))
		next.ServeHTTP(rec, req)
		elapsed := timer.ObserveDuration()

		c.metrics.RecordAPIRequest(route, req.Method, fmt.Sprint(rec.status))
		c.logger.Debugw("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration", elapsed,
			"remote", req.RemoteAddr,
		)
	})
}
