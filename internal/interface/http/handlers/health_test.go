package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestReadinessMonitor_NoDependencies(t *testing.T) {
	report := NewReadinessMonitor("test", 0).Check(context.Background())
	assert.Equal(t, StateOK, report.State)
	assert.True(t, report.Ready)
	assert.Equal(t, "test", report.Version)
}

func TestReadinessMonitor_Impact(t *testing.T) {
	tests := []struct {
		name      string
		archive   error
		service   error
		wantState State
		wantReady bool
		wantMsg   string
	}{
		{"all up", nil, nil, StateOK, true, ""},
		{"student service down", nil, errors.New("refused"), StateDegraded, true, "degraded: student_service"},
		{"archive down", errors.New("refused"), nil, StateDown, false, "unavailable: archive"},
		{"both down", errors.New("refused"), errors.New("refused"), StateDown, false, "unavailable: archive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewReadinessMonitor("test", time.Second)
			m.Register("archive", ImpactCritical, PingCheck(pinger{err: tt.archive}))
			m.Register("student_service", ImpactDegraded, PingCheck(pinger{err: tt.service}))

			report := m.Check(context.Background())
			assert.Equal(t, tt.wantState, report.State)
			assert.Equal(t, tt.wantReady, report.Ready)
			assert.Equal(t, tt.wantMsg, report.Message)
			assert.Equal(t, "critical", report.Dependencies["archive"].Impact)
			assert.Equal(t, "degraded", report.Dependencies["student_service"].Impact)
		})
	}
}

func TestReadinessMonitor_DetailsAndTimeout(t *testing.T) {
	m := NewReadinessMonitor("test", 20*time.Millisecond)
	m.Register("sessions", ImpactDegraded, func(context.Context) (any, error) {
		return map[string]int{"open": 3}, nil
	})
	m.Register("slow", ImpactDegraded, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	report := m.Check(context.Background())
	assert.Equal(t, map[string]int{"open": 3}, report.Dependencies["sessions"].Details)
	assert.Equal(t, StateDown, report.Dependencies["slow"].State)
	assert.Contains(t, report.Dependencies["slow"].Message, "deadline exceeded")
	assert.Equal(t, StateDegraded, report.State)
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	h := RequestSizeLimitMiddleware(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "payload_too_large")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
	assert.Equal(t, http.StatusOK, rec.Code)
}
