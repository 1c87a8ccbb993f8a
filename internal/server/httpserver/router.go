package httpserver

import (
	"net/http"

	"github.com/yndnr/kvwait/internal/telemetry/logger"
)

// RouterConfig holds configuration for the admin router.
type RouterConfig struct {
	// Logger for access and panic logging.
	Logger logger.Logger

	// Metrics serves /metrics. Nil answers 404.
	Metrics http.Handler

	// Ready reports whether the protocol listener is serving. Nil means
	// always ready.
	Ready func() bool

	// Status returns the JSON body of /status. Nil answers 404.
	Status func() any

	// AllowList is the IP/CIDR allowlist (empty = no restriction).
	AllowList []string
}

// NewRouter creates the admin routes wrapped in the middleware chain.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	h := &handler{
		ready:  cfg.Ready,
		status: cfg.Status,
		logger: log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ready", h.handleReady)
	if cfg.Status != nil {
		mux.HandleFunc("GET /status", h.handleStatus)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	// Order: RequestID -> Recover -> NetworkACL -> AccessLog -> mux
	middlewares := []Middleware{RequestID(), Recover(log)}
	if len(cfg.AllowList) > 0 {
		middlewares = append(middlewares, NetworkACL(&NetworkACLConfig{
			AllowList: cfg.AllowList,
			Logger:    log,
		}))
	}
	middlewares = append(middlewares, AccessLog(log))

	return Chain(mux, middlewares...)
}
