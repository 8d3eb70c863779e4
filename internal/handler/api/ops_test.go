package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"VolStack/internal/domain/models"
	applogger "VolStack/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type stubBarStore struct{ err error }

func (s *stubBarStore) LatestN(context.Context, string, int) ([]models.Bar, error) { return nil, nil }
func (s *stubBarStore) Range(context.Context, string, time.Time, time.Time) ([]models.Bar, error) {
	return nil, nil
}
func (s *stubBarStore) LatestTimestamp(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (s *stubBarStore) Health(context.Context) error { return s.err }

type stubPredictionStore struct{ err error }

func (s *stubPredictionStore) Upsert(context.Context, *models.PredictionRecord) error { return nil }
func (s *stubPredictionStore) Latest(context.Context) (*models.PredictionRecord, error) {
	return nil, errors.New("unused")
}
func (s *stubPredictionStore) Health(context.Context) error { return s.err }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return l
}

func TestHealthAllStoresUp(t *testing.T) {
	h := NewOpsHandler(testLogger(t), nil, &stubBarStore{}, &stubPredictionStore{}, nil)
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var body struct {
		Healthy bool              `json:"healthy"`
		Checks  map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Healthy {
		t.Error("healthy = false with all stores up")
	}
	if body.Checks["clickhouse"] != "ok" || body.Checks["postgres"] != "ok" {
		t.Errorf("checks = %v, want both ok", body.Checks)
	}
}

func TestHealthStoreDownIsUnavailable(t *testing.T) {
	h := NewOpsHandler(testLogger(t), nil,
		&stubBarStore{err: errors.New("connection refused")},
		&stubPredictionStore{}, nil)
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("body %s does not surface the store error", rec.Body.String())
	}
}

func TestSignalHubFansOut(t *testing.T) {
	hub := NewSignalHub(testLogger(t))
	defer hub.Close()

	e := echo.New()
	e.GET("/ws/signals", hub.Serve)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/signals"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	want := &models.PredictionRecord{
		Timestamp: time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC),
		Signal:    models.SignalStrongBuy,
		PredVol:   0.002,
		ProbUp:    0.73,
		ProbDown:  0.27,
	}
	// The hub registers the connection asynchronously with the upgrade.
	deadline := time.Now().Add(2 * time.Second)
	var got models.PredictionRecord
	for {
		hub.Notify(want)
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if err := conn.ReadJSON(&got); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no message received from hub")
		}
	}
	if got.Signal != want.Signal || !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("received %+v, want %+v", got, want)
	}
}
