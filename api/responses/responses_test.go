package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccessWrapsData(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"balance": "10.00"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"balance":"10.00"}}`, w.Body.String())
}

func TestWriteJSONFallsBackWhenPayloadCannotEncode(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]float64{"bad": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(pkgerrors.CodeInternal), decodeError(t, w).Code)
}

func TestWriteError(t *testing.T) {
	cases := map[string]struct {
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		wantDetails bool
	}{
		"validation keeps message and details": {
			err:         pkgerrors.New(pkgerrors.CodeValidation, "bad input").WithDetails(map[string]string{"amount": "is required"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "bad input",
			wantDetails: true,
		},
		"insufficient funds": {
			err:         pkgerrors.InsufficientFunds("a@x.com", stringer("10.00"), stringer("25.00")),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeInsufficientFunds,
			message:     "Insufficient balance",
			wantDetails: true,
		},
		"not found hides details": {
			err:     pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found").WithDetails("row 7"),
			status:  http.StatusNotFound,
			code:    pkgerrors.CodeNotFound,
			message: "transaction not found",
		},
		"internal message is replaced": {
			err:     pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("pq: relation missing"), "insert ledger row"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		"untyped errors are internal": {
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		"signature failures stay generic": {
			err:     pkgerrors.New(pkgerrors.CodeSignatureInvalid, "timestamp outside tolerance"),
			status:  http.StatusBadRequest,
			code:    pkgerrors.CodeSignatureInvalid,
			message: "signature verification failed",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tc.err)

			require.Equal(t, tc.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, string(tc.code), body.Code)
			assert.Equal(t, tc.message, body.Message)
			if tc.wantDetails {
				assert.NotNil(t, body.Details)
			} else {
				assert.Nil(t, body.Details)
			}
		})
	}
}

func TestWriteErrorLogsByStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	WriteError(context.Background(), logg, httptest.NewRecorder(), errors.New("boom"))
	assert.Contains(t, buf.String(), `"message":"request.error"`)
	assert.Contains(t, buf.String(), `"http_status":500`)

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeConflict, "duplicate"))
	assert.Contains(t, buf.String(), `"message":"request.rejected"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestWriteErrorSetsRetryAfterForRateLimits(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "slow down"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	w = httptest.NewRecorder()
	w.Header().Set("Retry-After", "5")
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "slow down"))
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
}

type stringer string

func (s stringer) String() string { return string(s) }
