package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/conn"
	"github.com/Voyage-Tech-Solutions/EduSMS-sub003/pkg/logger"
)

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status   string `json:"status"`
	State    string `json:"state"`
	Uptime   string `json:"uptime"`
	LastPong string `json:"last_pong,omitempty"`
	Channels int    `json:"channels"`
	Attempt  int    `json:"attempt,omitempty"`
	Online   int    `json:"online_users"`
}

// healthServer manages the HTTP health check and metrics endpoint.
type healthServer struct {
	server  *http.Server
	client  *Client
	running atomic.Bool
}

// newHealthServer creates a new health check server.
func newHealthServer(client *Client, port int) *healthServer {
	hs := &healthServer{
		client: client,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/healthz", hs.handleHealth) // Kubernetes-style endpoint
	mux.HandleFunc("/ready", hs.handleReady)
	mux.HandleFunc("/readyz", hs.handleReady)
	mux.HandleFunc("/live", hs.handleLive)
	mux.HandleFunc("/livez", hs.handleLive)
	mux.Handle("/metrics", promhttp.Handler())

	hs.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	return hs
}

// Start starts the health check server.
func (hs *healthServer) Start() error {
	if hs.running.Load() {
		return fmt.Errorf("health server already running")
	}

	hs.running.Store(true)
	logger.Info("Starting health check server", "addr", hs.server.Addr)

	go func() {
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health check server error", "error", err)
		}

		hs.running.Store(false)
	}()

	return nil
}

// Stop gracefully stops the health check server.
func (hs *healthServer) Stop() {
	if !hs.running.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := hs.server.Shutdown(ctx); err != nil {
		logger.Warn("Error stopping health check server", "error", err)
	}
}

// handleHealth returns the overall health status.
func (hs *healthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := hs.getHealthStatus()

	w.Header().Set("Content-Type", "application/json")

	if status.Status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		logger.Error("Failed to encode health response", "error", err)
	}
}

// handleReady returns readiness (is the connection open?)
func (hs *healthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if hs.client.State() == conn.StateOpen {
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write([]byte("ready")); err != nil {
			logger.Error("Failed to write ready response", "error", err)
		}

		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)

	if _, err := w.Write([]byte("not connected")); err != nil {
		logger.Error("Failed to write not connected response", "error", err)
	}
}

// handleLive returns liveness (is the process alive?)
func (hs *healthServer) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("alive")); err != nil {
		logger.Error("Failed to write alive response", "error", err)
	}
}

// getHealthStatus builds the health status response.
func (hs *healthServer) getHealthStatus() HealthStatus {
	state := hs.client.State()

	status := HealthStatus{
		State:    state.String(),
		Uptime:   time.Since(hs.client.startTime).Round(time.Second).String(),
		Channels: len(hs.client.Channels()),
		Attempt:  hs.client.conn.Attempt(),
		Online:   hs.client.presence.Len(),
	}

	if lastPong := hs.client.conn.LastPong(); !lastPong.IsZero() {
		status.LastPong = time.Since(lastPong).Round(time.Second).String() + " ago"
	}

	switch state {
	case conn.StateOpen:
		status.Status = "healthy"
	case conn.StateConnecting, conn.StateReconnecting:
		status.Status = "degraded"
	default:
		status.Status = "unhealthy"
	}

	return status
}
