package studentsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
	"github.com/webmasters-learning/receipt-desk/internal/domain/student"
	"github.com/webmasters-learning/receipt-desk/pkg/circuitbreaker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.Timeout = 2 * time.Second
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "not a url"})
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{BaseURL: ""})
	assert.Error(t, err)
}

func TestClient_ListStudents(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DirectoryPath, r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"_id":"1","name":"Ada Lovelace"},{"_id":"2","name":"Alan Turing"},{"name":"no id"}]`))
	})

	got, err := client.ListStudents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []student.Summary{
		{ID: "1", Name: "Ada Lovelace"},
		{ID: "2", Name: "Alan Turing"},
	}, got)
}

func TestClient_ListStudents_MixedIDTypes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":1,"name":"Ada"},{"_id":"2","name":"Bob"},{"id":3,"name":"Cy"}]`))
	})

	got, err := client.ListStudents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []student.Summary{
		{ID: "1", Name: "Ada"},
		{ID: "2", Name: "Bob"},
		{ID: "3", Name: "Cy"},
	}, got)
}

func TestClient_GetStudent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DetailPath+"1", r.URL.Path)
		_, _ = w.Write([]byte(`{"name":"Ada Lovelace","email":"ada@x.com","totalFees":"500","remainingFees":"100"}`))
	})

	got, err := client.GetStudent(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, &student.Detail{
		ID:            "1",
		Name:          "Ada Lovelace",
		Email:         "ada@x.com",
		TotalFees:     "500",
		RemainingFees: "100",
	}, got)
}

func TestClient_GetStudent_NumericFees(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"_id":"7","name":"Bob","email":null,"totalFees":500,"remainingFees":0}`))
	})

	got, err := client.GetStudent(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "7", got.ID)
	assert.Equal(t, "500", got.TotalFees)
	assert.Equal(t, "0", got.RemainingFees)
	assert.Empty(t, got.Email)
}

func TestClient_GetStudent_EscapesID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/students/student/a%2Fb", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"name":"X"}`))
	})

	_, err := client.GetStudent(context.Background(), "a/b")
	require.NoError(t, err)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, `{"message":"missing"}`, shared.ErrStudentNotFound},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, shared.ErrStudentServiceDown},
		{"malformed body", http.StatusOK, `{"name":`, shared.ErrStudentServiceBadPayload},
		{"object as fee", http.StatusOK, `{"name":"A","totalFees":{"v":1}}`, shared.ErrStudentServiceBadPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.GetStudent(context.Background(), "1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_NotFoundIsAlsoGenericNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetStudent(context.Background(), "missing")
	assert.True(t, shared.IsNotFound(err))
	assert.False(t, shared.IsExternalService(err))
}

func TestClient_ServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.ListStudents(context.Background())
	assert.ErrorIs(t, err, shared.ErrStudentServiceDown)
	assert.True(t, shared.IsExternalService(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.ListStudents(context.Background())
	assert.ErrorIs(t, err, shared.ErrStudentServiceTimeout)
}

func TestClient_NoRetry(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListStudents(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_BreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	breaker := circuitbreaker.StudentServiceBreaker(2, time.Hour)
	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second, Breaker: breaker})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = client.ListStudents(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	_, err = client.ListStudents(context.Background())
	assert.ErrorIs(t, err, shared.ErrStudentServiceDown)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestFlexText(t *testing.T) {
	var d DetailDTO
	require.NoError(t, json.Unmarshal([]byte(`{"name":"A","totalFees":12.5,"remainingFees":true}`), &d))
	assert.Equal(t, FlexText("12.5"), d.TotalFees)
	assert.Equal(t, FlexText("true"), d.RemainingFees)
	assert.Equal(t, FlexText(""), d.Email)
}
