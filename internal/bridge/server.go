// Package bridge exposes one RCON client over HTTP.
package bridge

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/rconctl/internal/auth"
	"github.com/danmuck/rconctl/internal/observability"
	"github.com/danmuck/rconctl/internal/protocol/frame"
	"github.com/danmuck/rconctl/internal/rcon"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const maxCommandLen = 1446

var ErrEmptyCommand = errors.New("bridge: command required")

// Executor is the part of *rcon.Client the bridge needs.
type Executor interface {
	Exec(ctx context.Context, typ frame.MessageType, command string) (rcon.Answer, error)
	Reconfigure(ctx context.Context) error
	State() rcon.State
}

type Options struct {
	CorsOrigins []string
	StripColors bool
	// Auth guards /v1 routes when set. Health, readiness and metrics stay open.
	Auth auth.Validator
}

type Server struct {
	ID          string
	Appeared    time.Time
	StripColors bool

	exec   Executor
	auth   auth.Validator
	router *gin.Engine
}

type execRequest struct {
	Command string `json:"command"`
}

type execResponse struct {
	Output    string `json:"output"`
	RequestID int32  `json:"request_id"`
	Success   bool   `json:"success"`
}

func New(id string, exec Executor, opts Options) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, id, "/health", "/ready", "/metrics"))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:          id,
		Appeared:    time.Now(),
		StripColors: opts.StripColors,
		exec:        exec,
		auth:        opts.Auth,
		router:      r,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		state := s.exec.State()
		status := http.StatusOK
		if state == rcon.StateUnconfigured {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   status == http.StatusOK,
			"state":   state.String(),
			"service": s.ID,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	if s.auth != nil {
		v1.Use(requireToken(s.auth))
	}
	v1.POST("/exec", func(c *gin.Context) {
		var req execRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := s.Execute(c.Request.Context(), req.Command)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": failureKind(err)})
			return
		}
		c.JSON(http.StatusOK, resp)
	})
}

// Execute relays one command and shapes the answer for HTTP callers.
func (s *Server) Execute(ctx context.Context, command string) (execResponse, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return execResponse{}, ErrEmptyCommand
	}
	if len(command) > maxCommandLen {
		return execResponse{}, errors.New("bridge: command too long")
	}

	ans, err := s.exec.Exec(ctx, frame.Command, command)
	if f, ok := rcon.FailureOf(err); ok && f.Kind == rcon.FailureNotConfigured {
		// a failed reconnect leaves the client unconfigured until set up again
		if rerr := s.exec.Reconfigure(ctx); rerr != nil {
			log.Debug().Msgf("bridge.Server reconfigure node=%q err=%v", s.ID, rerr)
		} else {
			ans, err = s.exec.Exec(ctx, frame.Command, command)
		}
	}
	if err != nil {
		observability.RecordBridgeCommand(s.ID, failureKind(err))
		return execResponse{}, err
	}
	observability.RecordBridgeCommand(s.ID, "")

	out := ans.Text()
	if s.StripColors {
		out = rcon.StripColorCodes(out)
	}
	return execResponse{Output: out, RequestID: ans.CorrelationID, Success: ans.Success}, nil
}

// Serve runs the HTTP server until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("bridge.Server listen addr=%q node=%q", addr, s.ID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.CheckHeader(v, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func statusFor(err error) int {
	if errors.Is(err, ErrEmptyCommand) {
		return http.StatusBadRequest
	}
	f, ok := rcon.FailureOf(err)
	if !ok {
		return http.StatusBadRequest
	}
	switch f.Kind {
	case rcon.FailureTimeout, rcon.FailureCanceled:
		return http.StatusGatewayTimeout
	case rcon.FailureNotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func failureKind(err error) string {
	if f, ok := rcon.FailureOf(err); ok {
		return string(f.Kind)
	}
	return "invalid"
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
