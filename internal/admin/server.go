// Package admin serves the operator HTTP API: health, settings, recent
// internal events, Prometheus metrics and a signed event-injection webhook.
package admin

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"alphabot/internal/bus"
	"alphabot/internal/domain"
	"alphabot/internal/metrics"
	"alphabot/internal/settings"
)

const (
	maxBodySize     = 1 << 20
	defaultRecent   = 50
	signatureHeader = "X-Signature-256"
	shutdownTimeout = 5 * time.Second
)

// Config wires the admin server.
type Config struct {
	Addr          string
	Token         string // bearer token for /api; empty disables auth
	WebhookSecret string // HMAC secret for POST /api/events
	// DefaultChannel receives injected events that name no channel.
	DefaultChannel string
	Store          *settings.Store
	Events         *bus.EventBus
	Bus            domain.MessageBus
	Metrics        *metrics.Collector
	Logger         *slog.Logger
}

type Server struct {
	addr    string
	token   string
	secret  string
	channel string
	store   *settings.Store
	events  *bus.EventBus
	bus     domain.MessageBus
	metrics *metrics.Collector
	logger  *slog.Logger
	engine  *gin.Engine
	started time.Time
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default
	}
	s := &Server{
		addr:    cfg.Addr,
		token:   cfg.Token,
		secret:  cfg.WebhookSecret,
		channel: cfg.DefaultChannel,
		store:   cfg.Store,
		events:  cfg.Events,
		bus:     cfg.Bus,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		started: time.Now(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", s.health)
	engine.GET("/metrics", gin.WrapF(s.metrics.Handler()))

	api := engine.Group("/api")
	api.POST("/events", s.injectEvent)

	authed := api.Group("", s.authMiddleware())
	authed.GET("/settings", s.getSettings)
	authed.PUT("/settings/toggles/:name", s.putToggle)
	authed.GET("/events", s.replayEvents)
	authed.GET("/events/recent", s.recentEvents)

	s.engine = engine
	return s
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("admin listen %s: %w", s.addr, err)
	}
	s.logger.Info("admin server starting", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("admin server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("admin server: %w", err)
	}
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authorized(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func (s *Server) authorized(c *gin.Context) bool {
	if s.token == "" {
		return true
	}
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	return hmac.Equal([]byte(token), []byte(s.token))
}

func (s *Server) health(c *gin.Context) {
	st := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"mode":          st.Mode(),
		"uptimeSeconds": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

type toggleBody struct {
	On *bool `json:"on"`
}

func (s *Server) putToggle(c *gin.Context) {
	name := strings.ToLower(c.Param("name"))
	var body toggleBody
	if err := c.ShouldBindJSON(&body); err != nil || body.On == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": `body must be {"on": true|false}`})
		return
	}

	st, err := s.store.SetToggle(name, *body.On)
	switch {
	case errors.Is(err, settings.ErrUnknownToggle):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown toggle " + name})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.emit(bus.EventSettingsChanged, map[string]any{"key": name, "value": *body.On, "actor": "admin"})
	on, _ := st.Toggle(name)
	c.JSON(http.StatusOK, gin.H{"name": name, "on": on})
}

func (s *Server) recentEvents(c *gin.Context) {
	n := defaultRecent
	if q := c.Query("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "n must be a non-negative integer"})
			return
		}
		n = v
	}
	events := []bus.Event{}
	if s.events != nil {
		events = append(events, s.events.Recent(n)...)
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// replayEvents filters the event history by type (default all) and an
// RFC 3339 lower time bound.
func (s *Server) replayEvents(c *gin.Context) {
	typ := c.DefaultQuery("type", bus.AllEvents)
	var since time.Time
	if q := c.Query("since"); q != "" {
		t, err := time.Parse(time.RFC3339, q)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 time"})
			return
		}
		since = t
	}
	events := []bus.Event{}
	if s.events != nil {
		events = append(events, s.events.Replay(typ, since)...)
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// injectEvent accepts an InboundEvent from an external client. With a
// webhook secret the body must carry a valid HMAC signature; without one
// the bearer token applies.
func (s *Server) injectEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if s.secret != "" {
		sig := c.GetHeader(signatureHeader)
		if sig == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
			return
		}
		if !VerifyHMAC(body, s.secret, sig) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
	} else if !s.authorized(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	var ev domain.InboundEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}
	if ev.ChatID == "" || ev.Text == "" && !ev.HasMedia {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "chatId and text are required"})
		return
	}
	if ev.Channel == "" {
		ev.Channel = s.channel
	}
	if _, ok := s.bus.Sink(ev.Channel); !ok {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "no sink for channel " + ev.Channel})
		return
	}
	if ev.SenderID == "" {
		ev.SenderID = ev.ChatID
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	s.logger.Info("webhook event received", "channel", ev.Channel, "chat", ev.ChatID, "id", ev.ID)
	s.emit(bus.EventWebhookReceived, map[string]any{"channel": ev.Channel, "chat": ev.ChatID, "id": ev.ID})
	s.bus.Publish(ev)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) emit(typ string, payload map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Emit(bus.Event{Type: typ, Source: "admin", Payload: payload})
}

// VerifyHMAC checks a "sha256=<hex>" HMAC-SHA256 signature of body.
func VerifyHMAC(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}

// Sign returns the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
