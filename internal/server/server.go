package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/gridctl/internal/control"
	"github.com/danmuck/gridctl/internal/observability"
	"github.com/danmuck/gridctl/internal/remote"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	Version         = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

// NodeResolver maps a node name or address from a request body to a
// cluster node.
type NodeResolver interface {
	Node(key string) (remote.Node, bool)
}

type Config struct {
	Name        string
	Addr        string
	CorsOrigins []string
	// AuthToken, when set, is required as a bearer token on /v1 routes.
	AuthToken string
}

// Server exposes the control utility facade over HTTP.
type Server struct {
	name     string
	addr     string
	token    string
	util     *control.Utility
	nodes    NodeResolver
	router   *gin.Engine
	appeared time.Time
}

func New(util *control.Utility, nodes NodeResolver, cfg Config) *Server {
	observability.RegisterMetrics()
	name := cfg.Name
	if name == "" {
		name = "gridctl"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(observability.InitLogger(name)))
	r.Use(observability.RequestMetrics(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", observability.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		name:     name,
		addr:     cfg.Addr,
		token:    cfg.AuthToken,
		util:     util,
		nodes:    nodes,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Str("service", s.name).Msg("server.Server.Run listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info().Str("service", s.name).Msg("server.Server.Run shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
