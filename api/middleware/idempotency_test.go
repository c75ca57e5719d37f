package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

type memoryReplayStore map[string]string

func (m memoryReplayStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m memoryReplayStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, taken := m[key]; taken {
		return false, nil
	}
	m[key], _ = value.(string)
	return true, nil
}

func (m memoryReplayStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m[key], _ = value.(string)
	return nil
}

func (m memoryReplayStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m, k)
	}
	return nil
}

func (m memoryReplayStore) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

// routed builds a request as chi would hand it to middleware after matching
// pattern. path defaults to the pattern itself.
func routed(method, pattern, body, key string) *http.Request {
	req := httptest.NewRequest(method, pattern, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestRouteTTLSelection(t *testing.T) {
	cases := map[string]struct {
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		"book appointment": {http.MethodPost, "/api/v1/wallet/book-appointment", criticalIdempotencyTTL, true},
		"auto deduct":      {http.MethodPost, "/api/v1/wallet/appointments/auto-deduct", criticalIdempotencyTTL, true},
		"video call":       {http.MethodPost, "/api/v1/video-call/pay", criticalIdempotencyTTL, true},
		"add money":        {http.MethodPost, "/api/v1/wallet/add-money", defaultIdempotencyTTL, true},
		"transfer":         {http.MethodPost, "/api/v1/wallet/transfer", defaultIdempotencyTTL, true},
		"reprocess":        {http.MethodPost, "/api/v1/admin/payment-events/evt_1/reprocess", defaultIdempotencyTTL, true},
		"history read":     {http.MethodGet, "/api/v1/wallet/history", 0, false},
		"login":            {http.MethodPost, "/api/v1/wallet/login", 0, false},
		"webhook":          {http.MethodPost, "/api/v1/webhooks/stripe", 0, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ttl, ok := routeTTL(tc.method, tc.pattern)
			require.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, ttl)
		})
	}
}

func TestIdempotencyRequiresKeyOnMoneyRoutes(t *testing.T) {
	handler := Idempotency(memoryReplayStore{}, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without a key")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, routed(http.MethodPost, "/api/v1/wallet/transfer", `{"amount":"5"}`, ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	calls := 0
	handler := Idempotency(memoryReplayStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"data":{"transaction_id":"tx_1"}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, routed(http.MethodPost, "/api/v1/wallet/transfer", `{"amount":"5"}`, "abc"))
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get(IdempotencyReplayedHeader))

	again := httptest.NewRecorder()
	handler.ServeHTTP(again, routed(http.MethodPost, "/api/v1/wallet/transfer", `{"amount":"5"}`, "abc"))
	assert.Equal(t, http.StatusAccepted, again.Code)
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.Equal(t, "true", again.Header().Get(IdempotencyReplayedHeader))
	assert.JSONEq(t, `{"data":{"transaction_id":"tx_1"}}`, again.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	handler := Idempotency(memoryReplayStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/wallet/transfer", `{"amount":"5"}`, "xyz"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, routed(http.MethodPost, "/api/v1/wallet/transfer", `{"amount":"500"}`, "xyz"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyReleasesKeyAfterServerError(t *testing.T) {
	store := memoryReplayStore{}
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/wallet/add-money", `{"amount":"1"}`, "retry-me"))
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store)
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := memoryReplayStore{}
	var dup *httptest.ResponseRecorder
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The retry lands while the first attempt is still running.
		retry := routed(http.MethodPost, "/api/v1/video-call/pay", `{"email":"a@x.com"}`, "")
		retry.Header.Set(legacyIdempotencyKeyHeader, "vc-1")
		dup = httptest.NewRecorder()
		Idempotency(store, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("duplicate must not reach the handler")
		})).ServeHTTP(dup, retry)
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/video-call/pay", `{"email":"a@x.com"}`, "vc-1"))

	require.NotNil(t, dup)
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Contains(t, dup.Body.String(), "still in progress")
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	calls := 0
	handler := Idempotency(memoryReplayStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	for _, email := range []string{"a@x.com", "b@x.com"} {
		req := routed(http.MethodPost, "/api/v1/wallet/transfer", `{"amount":"5"}`, "same")
		handler.ServeHTTP(httptest.NewRecorder(), req.WithContext(WithEmail(req.Context(), email)))
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyScopesByBodyPartyWithoutToken(t *testing.T) {
	store := memoryReplayStore{}
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	bodies := []string{
		`{"email":"a@x.com","amount":"100"}`,
		`{"email":"b@x.com","amount":"100"}`,
		`{"fromType":"patient","fromId":"c@x.com","amount":"5"}`,
	}
	for _, body := range bodies {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, routed(http.MethodPost, "/api/v1/wallet/add-money", body, "shared-key"))
		assert.Equal(t, http.StatusOK, rec.Code, body)
	}
	assert.Equal(t, 3, calls)

	for key := range store {
		assert.NotContains(t, key, "anonymous")
	}
	assert.Contains(t, store, "test:idem:a@x.com|POST|/api/v1/wallet/add-money:shared-key")

	assert.Equal(t, "a@x.com", bodyParty([]byte(`{"email":" A@X.com "}`)))
	assert.Empty(t, bodyParty([]byte(`not json`)))
}

func TestIdempotencySkipsUnlistedRoutes(t *testing.T) {
	called := false
	handler := Idempotency(memoryReplayStore{}, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), routed(http.MethodPost, "/api/v1/wallet/login", `{}`, ""))
	assert.True(t, called)
}
