package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRendering(t *testing.T) {
	want := map[Code]Metadata{
		CodeValidation:        {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:      {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeForbidden:         {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeNotFound:          {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeConflict:          {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected"},
		CodeStateConflict:     {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeIdempotency:       {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
		CodeInsufficientFunds: {HTTPStatus: http.StatusBadRequest, PublicMessage: "insufficient funds", DetailsAllowed: true},
		CodeRateLimit:         {HTTPStatus: http.StatusTooManyRequests, Retryable: true, PublicMessage: "too many requests"},
		CodeSignatureInvalid:  {HTTPStatus: http.StatusBadRequest, PublicMessage: "signature verification failed"},
		CodeInternal:          {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
		CodeDependency:        {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
	}
	for code, meta := range want {
		assert.Equal(t, meta, MetadataFor(code), "code %s", code)
	}
	assert.Equal(t, want[CodeInternal], MetadataFor("SOMETHING_UNKNOWN"))
}

func TestConstructorsAndAccessors(t *testing.T) {
	e := New(CodeValidation, "missing amount")
	assert.Equal(t, CodeValidation, e.Code())
	assert.Equal(t, "missing amount", e.Message())
	assert.Nil(t, e.Details())
	assert.Equal(t, "amount", e.WithDetails("amount").Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "insert record")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Nil(t, Wrap(CodeInternal, nil, "no cause").Unwrap())

	f := Newf(CodeNotFound, "wallet %s not found", "a@x.com")
	assert.Equal(t, "NOT_FOUND: wallet a@x.com not found", f.Error())
	assert.Equal(t, "DEPENDENCY_ERROR: fetch rate: dial tcp: refused",
		Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "fetch rate").Error())
}

func TestNilErrorIsInert(t *testing.T) {
	var e *Error
	assert.Empty(t, e.Error())
	assert.Empty(t, e.Message())
	assert.Equal(t, CodeInternal, e.Code())
	assert.Nil(t, e.WithDetails("x"))
	assert.Nil(t, e.Unwrap())
}

func TestAsAndIsCodeWalkTheChain(t *testing.T) {
	inner := New(CodeValidation, "bad amount")
	wrapped := fmt.Errorf("settle: %w", inner)

	assert.Same(t, inner, As(wrapped))
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))

	assert.True(t, IsCode(wrapped, CodeValidation))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(nil, CodeValidation))
}

type amount string

func (a amount) String() string { return string(a) }

func TestInsufficientFundsDetails(t *testing.T) {
	err := InsufficientFunds("a@x.com", amount("100.00"), amount("150.00"))
	require.Equal(t, CodeInsufficientFunds, err.Code())
	assert.Equal(t, map[string]any{
		"account":   "a@x.com",
		"balance":   "100.00",
		"requested": "150.00",
	}, err.Details())
}

func TestStatusOf(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"nil":          {nil, http.StatusOK},
		"untyped":      {stdErrors.New("plain"), http.StatusInternalServerError},
		"rate limit":   {New(CodeRateLimit, "slow down"), http.StatusTooManyRequests},
		"wrapped":      {fmt.Errorf("settle: %w", New(CodeInsufficientFunds, "low")), http.StatusBadRequest},
		"unknown code": {New("MADE_UP", "?"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusOf(tc.err))
		})
	}
}
