// Package health exposes a lightweight HTTP health endpoint for container probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"tg_notify_relay_bot/internal/logging"
	"tg_notify_relay_bot/internal/store"
)

const (
	mongoPingTimeout   = 2 * time.Second
	statsTimeout       = 2 * time.Second
	readHeaderTimeout  = 2 * time.Second
	healthListenPrefix = ":"
)

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// StatsCollector supplies the directory counters reported alongside the
// health status.
type StatsCollector interface {
	Collect(ctx context.Context) (store.Stats, error)
}

// Server hosts the health endpoint and owns the underlying HTTP server.
type Server struct {
	server       *http.Server
	logger       *logrus.Entry
	mongoChecker MongoChecker
	stats        StatsCollector
}

type response struct {
	Status string      `json:"status"`
	Mongo  string      `json:"mongo,omitempty"`
	Stats  *statsBlock `json:"stats,omitempty"`
}

type statsBlock struct {
	Users             int64 `json:"users"`
	Groups            int64 `json:"groups"`
	ActiveMemberships int64 `json:"active_memberships"`
}

// NewServer constructs a health server that exposes GET /healthz on the provided port.
func NewServer(port int, mongoChecker MongoChecker, stats StatsCollector, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:       logger,
		mongoChecker: mongoChecker,
		stats:        stats,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", healthListenPrefix, port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the health server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "health_stopped").Info("health server stopped")
			return nil
		}

		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}
	mongoStatus := "ok"

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if s.mongoChecker == nil {
		mongoStatus = "error"
		s.logger.WithField("event", "health_mongo_missing").Warn("mongo checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, mongoPingTimeout)
		err := s.mongoChecker.Ping(pingCtx)
		cancel()

		if err != nil {
			mongoStatus = "error"
			s.logger.WithFields(logging.Fields{
				"event": "health_mongo_error",
			}).WithError(err).Warn("mongo ping failed during health check")
		}
	}

	if mongoStatus != "ok" {
		resp.Status = "degraded"
		resp.Mongo = "error"
	}

	// Directory counters are informational; a collection failure does not
	// degrade the probe.
	if s.stats != nil && mongoStatus == "ok" {
		statsCtx, cancel := context.WithTimeout(ctx, statsTimeout)
		stats, err := s.stats.Collect(statsCtx)
		cancel()

		if err != nil {
			s.logger.WithField("event", "health_stats_error").WithError(err).Warn("failed to collect directory stats")
		} else {
			resp.Stats = &statsBlock{
				Users:             stats.Users,
				Groups:            stats.Groups,
				ActiveMemberships: stats.ActiveMemberships,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}
