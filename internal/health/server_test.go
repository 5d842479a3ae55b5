package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"tg_notify_relay_bot/internal/store"
)

type stubMongoChecker struct {
	err error
}

func (s stubMongoChecker) Ping(context.Context) error {
	return s.err
}

type stubStats struct {
	stats store.Stats
	err   error
}

func (s stubStats) Collect(context.Context) (store.Stats, error) {
	return s.stats, s.err
}

func TestHealthHandlerOK(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	server := NewServer(0, stubMongoChecker{err: nil}, nil, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"ok"}` {
		t.Fatalf("unexpected body: %s", body)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}
}

func TestHealthHandlerReportsStats(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	stats := stubStats{stats: store.Stats{Users: 3, Groups: 2, ActiveMemberships: 5}}
	server := NewServer(0, stubMongoChecker{err: nil}, stats, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	body := strings.TrimSpace(rr.Body.String())
	want := `{"status":"ok","stats":{"users":3,"groups":2,"active_memberships":5}}`
	if body != want {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestHealthHandlerStatsFailureStaysHealthy(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	stats := stubStats{err: errors.New("count failed")}
	server := NewServer(0, stubMongoChecker{err: nil}, stats, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"ok"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestHealthHandlerMongoError(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	server := NewServer(0, stubMongoChecker{err: errors.New("mongo down")}, nil, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"degraded","mongo":"error"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestHealthHandlerMissingMongoChecker(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	server := NewServer(0, nil, nil, logrus.NewEntry(logger))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	server.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}

	body := strings.TrimSpace(rr.Body.String())
	if body != `{"status":"degraded","mongo":"error"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}
