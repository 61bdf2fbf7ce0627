// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/catscale/internal/config"
	"github.com/relabs-tech/catscale/internal/history"
	"github.com/relabs-tech/catscale/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served on the local network
	},
}

// LiveEvent is pushed to websocket clients for every received message.
type LiveEvent struct {
	Type   string                   `json:"type"` // weight, status
	Weight *telemetry.WeightMessage `json:"weight,omitempty"`
	Status *telemetry.StatusMessage `json:"status,omitempty"`
}

// liveHub fans events out to websocket clients. Slow clients drop events.
type liveHub struct {
	mu      sync.Mutex
	clients map[chan LiveEvent]struct{}
}

func newLiveHub() *liveHub {
	return &liveHub{clients: make(map[chan LiveEvent]struct{})}
}

func (h *liveHub) subscribe() chan LiveEvent {
	ch := make(chan LiveEvent, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *liveHub) unsubscribe(ch chan LiveEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *liveHub) broadcast(ev LiveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

// WebServer stores scale messages and serves them over HTTP.
type WebServer struct {
	store *history.Store
	hub   *liveHub
}

func NewWebServer(store *history.Store) *WebServer {
	return &WebServer{store: store, hub: newLiveHub()}
}

// HandleWeight records a weight message and pushes it to live clients.
func (s *WebServer) HandleWeight(_ string, m telemetry.WeightMessage) {
	at := m.Time()
	if at.IsZero() {
		at = time.Now()
	}
	if m.SessionID == "" {
		m.SessionID = uuid.NewString()
	}
	id, err := s.store.RecordWeight(context.Background(), history.WeightRecord{
		Device:    m.Device,
		SessionID: m.SessionID,
		Grams:     m.Weight,
		At:        at,
	})
	if err != nil {
		logrus.WithError(err).Error("web: store weight")
	} else if id == 0 {
		logrus.WithField("session_id", m.SessionID).Debug("web: weight already recorded")
		return
	}
	s.hub.broadcast(LiveEvent{Type: "weight", Weight: &m})
}

func (s *WebServer) HandleStatus(_ string, m telemetry.StatusMessage) {
	at := m.Time()
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := s.store.RecordStatus(context.Background(), history.StatusRecord{
		Device:  m.Device,
		Message: m.Message,
		At:      at,
	}); err != nil {
		logrus.WithError(err).Error("web: store status")
	}
	s.hub.broadcast(LiveEvent{Type: "status", Status: &m})
}

// Handler returns the gin engine with all routes.
func (s *WebServer) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), ginLogger(logrus.StandardLogger()))

	api := r.Group("/api")
	api.GET("/weight/latest", s.latestWeight)
	api.GET("/weights", s.weights)
	api.GET("/status", s.latestStatus)
	r.GET("/ws", s.live)
	return r
}

func (s *WebServer) latestWeight(c *gin.Context) {
	rec, err := s.store.LatestWeight(c.Request.Context())
	if errors.Is(err, history.ErrNoRecords) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no data yet"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *WebServer) weights(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be 1-1000, got %q", v)})
			return
		}
		limit = n
	}
	recs, err := s.store.Weights(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *WebServer) latestStatus(c *gin.Context) {
	rec, err := s.store.LatestStatus(c.Request.Context())
	if errors.Is(err, history.ErrNoRecords) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no data yet"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *WebServer) live(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("web: websocket upgrade")
		return
	}
	defer conn.Close()

	events := s.hub.subscribe()
	defer s.hub.unsubscribe(events)

	// The reader only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logrus.WithError(err).Debug("web: websocket closed")
				}
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// ginLogger logs each request through logrus.
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		latency := int(math.Ceil(float64(time.Since(start).Nanoseconds()) / 1000000.0))
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"statusCode": statusCode,
			"latency":    latency,
			"method":     c.Request.Method,
			"path":       path,
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}
		msg := fmt.Sprintf("%s %s %d (%dms)", c.Request.Method, path, statusCode, latency)
		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(msg)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(msg)
		default:
			entry.Debug(msg)
		}
	}
}

// RunWeb subscribes to every scale, stores what arrives and serves the API
// until ctx is done.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	store, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := NewWebServer(store)

	cc, err := clientConfig(cfg, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	topics := telemetry.NewTopics(cfg.TopicBase, "+")
	sub := telemetry.NewSubscriber(cc)
	if err := sub.OnWeight(topics.Weight, srv.HandleWeight); err != nil {
		return err
	}
	if err := sub.OnStatus(topics.Status, srv.HandleStatus); err != nil {
		return err
	}
	if err := sub.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.MQTTBroker, err)
	}
	defer sub.Close()

	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", httpSrv.Addr).Info("web server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
