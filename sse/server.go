package sse

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/version"
)

const (
	componentName = "sse-server"
	healthPath    = "/health"
	versionPath   = "/version"
)

var (
	_ component.Component     = (*Server)(nil)
	_ component.Describable   = (*Server)(nil)
	_ component.RouteProvider = (*Server)(nil)
)

// HealthChecker reports the health of the process components.
type HealthChecker func(ctx context.Context) []component.Health

// Server is the HTTP listener that serves streams.
type Server struct {
	cfg     Config
	service string
	engine  *gin.Engine
	http    *http.Server
	log     *logger.Logger

	mu       sync.Mutex
	listener net.Listener
	routes   []component.Route
	streams  map[string]string
	serveErr error
}

// NewServer builds the gin engine with recovery, request ids, request
// logging and the /version endpoint. Routes are added with Stream before
// Start.
func NewServer(cfg Config, service string) *Server {
	cfg.ApplyDefaults()
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.Get("sse")
	engine := gin.New()
	engine.Use(Recovery(log), RequestID(), RequestLogger(log))

	s := &Server{
		cfg:     cfg,
		service: service,
		engine:  engine,
		log:     log,
		streams: make(map[string]string),
		http: &http.Server{
			Addr:        cfg.Addr(),
			Handler:     engine,
			ReadTimeout: cfg.ReadTimeout,
			IdleTimeout: cfg.IdleTimeout,
		},
	}
	s.handle(http.MethodGet, versionPath, "version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	})
	return s
}

// Engine exposes the gin engine for extra routes.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Stream mounts h under GET path and records it as the named stream.
func (s *Server) Stream(path, name string, h gin.HandlerFunc) {
	s.handle(http.MethodGet, path, name, h)
	s.mu.Lock()
	s.streams[name] = path
	s.mu.Unlock()
}

// Streams returns the mounted stream paths by name.
func (s *Server) Streams() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.streams))
	for k, v := range s.streams {
		out[k] = v
	}
	return out
}

// HandleHealth mounts /health backed by checker. It answers 503 when a
// component is unhealthy.
func (s *Server) HandleHealth(checker HealthChecker) {
	s.handle(http.MethodGet, healthPath, "health", func(c *gin.Context) {
		status := component.StatusHealthy
		var components []component.Health
		if checker != nil {
			components = checker(c.Request.Context())
		}
		for _, h := range components {
			if h.Status == component.StatusUnhealthy {
				status = component.StatusUnhealthy
				break
			}
			if h.Status == component.StatusDegraded {
				status = component.StatusDegraded
			}
		}
		code := http.StatusOK
		if status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     status,
			"service":    s.service,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": components,
		})
	})
}

func (s *Server) handle(method, path, name string, h gin.HandlerFunc) {
	s.engine.Handle(method, path, h)
	s.mu.Lock()
	s.routes = append(s.routes, component.Route{Method: method, Path: path, Handler: name})
	s.mu.Unlock()
}

// Name implements component.Component.
func (s *Server) Name() string { return componentName }

// Start binds the listener and serves in the background. It returns once
// the port is bound.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.http.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", logger.ErrorFields("serve", err))
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	}()
	s.log.Info("sse server listening", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the listener down. Open streams see their request context
// cancelled.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		// Streams that ignore the shutdown are cut.
		_ = s.http.Close()
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Addr is the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// Health implements component.Component.
func (s *Server) Health(ctx context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.serveErr != nil:
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: s.serveErr.Error()}
	case s.listener == nil:
		return component.Health{Name: componentName, Status: component.StatusDegraded, Message: "not listening"}
	}
	return component.Health{Name: componentName, Status: component.StatusHealthy, Message: s.listener.Addr().String()}
}

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	return component.Description{
		Name:    "SSE Server",
		Type:    "server",
		Details: fmt.Sprintf("%s, %d streams", s.Addr(), len(s.Streams())),
		Port:    s.cfg.Port,
	}
}

// Routes implements component.RouteProvider. Streams come first.
func (s *Server) Routes() []component.Route {
	s.mu.Lock()
	routes := append([]component.Route(nil), s.routes...)
	s.mu.Unlock()
	sort.SliceStable(routes, func(i, j int) bool {
		si, sj := isSystem(routes[i].Path), isSystem(routes[j].Path)
		if si != sj {
			return !si
		}
		return routes[i].Path < routes[j].Path
	})
	return routes
}

func isSystem(path string) bool {
	return path == healthPath || path == versionPath
}
