package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/healthoasis/wallet-backend/api/responses"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
	pkgredis "github.com/healthoasis/wallet-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader       = "Idempotency-Key"
	legacyIdempotencyKeyHeader = "X-Idempotency-Key"
	IdempotencyReplayedHeader  = "Idempotency-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// A claim held longer than this is treated as abandoned.
	pendingIdempotencyTTL = 2 * time.Minute
)

// Money-moving routes. Settlements keep their keys longer because clients
// retry them across app restarts.
var idempotentRoutes = map[string]time.Duration{
	"/api/v1/wallet/add-money":                defaultIdempotencyTTL,
	"/api/v1/wallet/transfer":                 defaultIdempotencyTTL,
	"/api/v1/wallet/payment-intent":           defaultIdempotencyTTL,
	"/api/v1/stripe/checkout-session":         defaultIdempotencyTTL,
	"/api/v1/admin/transactions":              defaultIdempotencyTTL,
	"/api/v1/wallet/book-appointment":         criticalIdempotencyTTL,
	"/api/v1/wallet/appointments/auto-deduct": criticalIdempotencyTTL,
	"/api/v1/video-call/pay":                  criticalIdempotencyTTL,
}

const (
	reprocessPrefix = "/api/v1/admin/payment-events/"
	reprocessSuffix = "/reprocess"
)

type replayStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type replayState string

const (
	statePending  replayState = "pending"
	stateComplete replayState = "complete"
)

type replayRecord struct {
	State       replayState `json:"state"`
	RequestHash string      `json:"request_hash"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency makes the money-moving routes safe to retry. The first request
// for a key claims it, later ones either replay the stored response or are
// rejected while the first is still running. Server faults release the claim.
// A nil store disables the middleware.
func Idempotency(store replayStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := idempotencyKeyFrom(r)
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(r, body)
			key := store.IdempotencyKey(replayScope(r, body), clientKey)

			existing, err := claim(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if existing != nil {
				replay(w, existing)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// Server faults are not replayed; the client may retry with the same key.
			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "release idempotency claim", err)
				}
				return
			}

			done, err := json.Marshal(replayRecord{
				State:       stateComplete,
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err == nil {
				err = store.Set(ctx, key, string(done), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(logg.WithField(ctx, "idempotency_key", clientKey), "persist idempotency record", err)
			}
		})
	}
}

// claim returns the completed record to replay, or nil when this request now
// owns the key.
func claim(ctx context.Context, store replayStore, key, hash string) (*replayRecord, error) {
	pending, _ := json.Marshal(replayRecord{State: statePending, RequestHash: hash})
	won, err := store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if won {
		return nil, nil
	}

	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; let the client retry.
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key is being released, retry")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	switch {
	case record.RequestHash != hash:
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	case record.State != stateComplete:
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress")
	}
	return &record, nil
}

func replay(w http.ResponseWriter, record *replayRecord) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(IdempotencyReplayedHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

func idempotencyKeyFrom(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		return key
	}
	return strings.TrimSpace(r.Header.Get(legacyIdempotencyKeyHeader))
}

// Keys are namespaced per caller so two patients cannot collide on a key.
// The money routes are not behind bearer auth, so the caller is the token
// email when present and otherwise the party named in the body.
func replayScope(r *http.Request, body []byte) string {
	caller := EmailFromContext(r.Context())
	if caller == "" {
		caller = bodyParty(body)
	}
	if caller == "" {
		caller = "anonymous"
	}
	return strings.Join([]string{caller, r.Method, r.URL.Path}, "|")
}

func bodyParty(body []byte) string {
	var fields struct {
		Email  string `json:"email"`
		FromID string `json:"fromId"`
	}
	if json.Unmarshal(body, &fields) != nil {
		return ""
	}
	for _, v := range []string{fields.Email, fields.FromID} {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			return v
		}
	}
	return ""
}

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// routePattern prefers the chi pattern. Middleware mounted on the root router
// runs before routing, so it falls back to the raw path.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if method != http.MethodPost || pattern == "" {
		return 0, false
	}
	if ttl, ok := idempotentRoutes[pattern]; ok {
		return ttl, true
	}
	if strings.HasPrefix(pattern, reprocessPrefix) && strings.HasSuffix(pattern, reprocessSuffix) {
		return defaultIdempotencyTTL, true
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
