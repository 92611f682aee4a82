package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"commerce/internal/pkg/lock"
	"commerce/internal/service/balance/application"
	"commerce/internal/service/balance/infrastructure"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

type noopLocker struct{ mu sync.Mutex }

func (l *noopLocker) Acquire(_ context.Context, _ string, _, _ time.Duration) (lock.Handle, error) {
	l.mu.Lock()
	return noopHandle{mu: &l.mu}, nil
}

type noopHandle struct{ mu *sync.Mutex }

func (h noopHandle) Release(_ context.Context) error {
	h.mu.Unlock()
	return nil
}

func newTestRouter() *chi.Mux {
	repo := infrastructure.NewInMemoryBalanceRepository()
	svc := application.NewBalanceService(repo, &noopLocker{}, otel.Tracer("test"), time.Second, time.Second)
	r := chi.NewRouter()
	NewBalanceHandler(svc).RegisterRoutes(r)
	return r
}

func TestChargeEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/users/balance/charge",
		strings.NewReader(`{"userId": 1, "amount": 5000}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		UserID             int64 `json:"userId"`
		BalanceAfterCharge int64 `json:"balanceAfterCharge"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.UserID)
	assert.Equal(t, int64(5000), resp.BalanceAfterCharge)
}

func TestChargeEndpointRejectsBadAmounts(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "above ceiling", body: `{"userId": 1, "amount": 1000001}`, code: http.StatusBadRequest},
		{name: "zero amount", body: `{"userId": 1, "amount": 0}`, code: http.StatusBadRequest},
		{name: "missing user", body: `{"amount": 100}`, code: http.StatusBadRequest},
		{name: "malformed json", body: `{`, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/users/balance/charge", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestGetBalanceEndpoint(t *testing.T) {
	router := newTestRouter()

	charge := httptest.NewRequest(http.MethodPost, "/api/users/balance/charge",
		strings.NewReader(`{"userId": 9, "amount": 777}`))
	router.ServeHTTP(httptest.NewRecorder(), charge)

	req := httptest.NewRequest(http.MethodGet, "/api/users/balance?userId=9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		UserID  int64 `json:"userId"`
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(777), resp.Balance)
}

func TestGetBalanceEndpointUnknownUser(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/users/balance?userId=404", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
