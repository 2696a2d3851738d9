// Package server is the HTTP boundary: task creation, the interactive
// websocket session, one-time result retrieval, and the admin connection
// API.
package server

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	openapimw "github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/websocket"

	"github.com/finbridge/finbridge/connector"
	"github.com/finbridge/finbridge/handoff"
	"github.com/finbridge/finbridge/task"
)

const (
	callbackPath = "/callback"
	resultPath   = "/result"
	taskPath     = "/task"

	// Handoff prefixes. Results are additionally scoped per connector so
	// one caller can never consume another's result.
	taskHandoffPrefix   = "task"
	resultHandoffPrefix = "result-"
)

//go:embed openapi.yaml
var openapiSpec []byte

// UserResolver extracts the admin identity from a request. The default
// resolver grants an anonymous scope that sees every connection; identity
// checking (JWT or otherwise) is the deployment's business.
type UserResolver func(r *http.Request) (string, error)

// App wires the stores, the workflow registry, and the route handlers.
type App struct {
	connectors   *connector.Store
	handoff      *handoff.Store
	registry     *task.Registry
	baseURL      string
	log          *slog.Logger
	resolveUser  UserResolver
	pingInterval time.Duration
	corsOrigins  []string
	upgrader     websocket.Upgrader
}

// Option configures the App.
type Option func(*App)

// WithLogger sets the structured logger. If not set, a JSON logger
// writing to stderr is used.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) {
		a.log = log
	}
}

// WithUserResolver sets the admin identity resolver.
func WithUserResolver(resolve UserResolver) Option {
	return func(a *App) {
		a.resolveUser = resolve
	}
}

// WithPingInterval overrides the websocket heartbeat period.
func WithPingInterval(d time.Duration) Option {
	return func(a *App) {
		a.pingInterval = d
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(a *App) {
		a.corsOrigins = origins
	}
}

// New creates the App. baseURL is the externally visible URL the service
// builds task and callback URIs from.
func New(connectors *connector.Store, handoffStore *handoff.Store, registry *task.Registry, baseURL string, opts ...Option) *App {
	a := &App{
		connectors:  connectors,
		handoff:     handoffStore,
		registry:    registry,
		baseURL:     baseURL,
		resolveUser: func(*http.Request) (string, error) { return "", nil },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return a
}

func (a *App) callbackURI() string {
	return a.baseURL + callbackPath
}

func (a *App) taskURI(token string) string {
	return a.baseURL + taskPath + "/" + token
}

func (a *App) resultPathFor(token string) string {
	return resultPath + "/" + token
}

// Router returns the fully mounted chi router.
func (a *App) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(a.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: a.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", openapimw.SwaggerUI(openapimw.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))
	r.Handle("/redoc*", openapimw.Redoc(openapimw.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Post("/", a.createTask)
	r.Get(taskPath+"/{token}", a.runTask)
	r.Get(resultPath+"/{token}", a.result)

	r.Route("/admin/api", func(r chi.Router) {
		r.Get("/connectors", a.listConnectors)
		r.Get("/connections", a.listConnections)
		r.Post("/connections", a.createConnection)
		r.Put("/connections", a.setConnectionConfig)
		r.Delete("/connections", a.destroyConnection)
	})

	return r
}
