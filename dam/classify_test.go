package dam

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/damsdk/models"
)

func TestClassifySuccess(t *testing.T) {
	env, err := Classify(200, []byte(`{"success": true, "data": {"id": "f1"}}`))
	require.NoError(t, err)
	assert.True(t, env.Success())
	assert.Equal(t, "f1", env.DataObject()["id"])
}

func TestClassifySuccessWithUnparsableBody(t *testing.T) {
	env, err := Classify(200, []byte("OK"))
	require.NoError(t, err)
	assert.Equal(t, models.Envelope{"message": "OK"}, env)

	env, err = Classify(200, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Envelope{"message": "Unknown error"}, env)
}

func TestClassifyStatusKinds(t *testing.T) {
	tests := []struct {
		status   int
		kind     Kind
		sentinel error
	}{
		{401, KindAuthentication, ErrAuthentication},
		{403, KindAuthorization, ErrAuthorization},
		{404, KindNotFound, ErrNotFound},
		{413, KindFileTooLarge, ErrFileTooLarge},
		{422, KindValidation, ErrValidation},
		{429, KindRateLimit, ErrRateLimit},
		{500, KindServer, ErrServer},
		{502, KindServer, ErrServer},
		{503, KindServer, ErrServer},
		{599, KindServer, ErrServer},
		{400, KindUnknown, ErrUnknown},
		{418, KindUnknown, ErrUnknown},
		{201, KindUnknown, ErrUnknown},
	}

	for _, tt := range tests {
		_, err := Classify(tt.status, []byte(`{"message": "nope"}`))
		require.Error(t, err, "status %d", tt.status)

		var dErr *Error
		require.True(t, errors.As(err, &dErr), "status %d", tt.status)
		assert.Equal(t, tt.kind, dErr.Kind, "status %d", tt.status)
		assert.Equal(t, tt.status, dErr.StatusCode, "status %d", tt.status)
		assert.ErrorIs(t, err, tt.sentinel, "status %d", tt.status)
		assert.ErrorIs(t, err, ErrDAM, "status %d", tt.status)
	}
}

func TestClassifyMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message field", 404, `{"message": "File not found", "error": "ignored"}`, "File not found"},
		{"error field", 422, `{"error": "bad input"}`, "bad input"},
		{"empty message falls back to error", 422, `{"message": "", "error": "bad input"}`, "bad input"},
		{"false message", 401, `{"message": false}`, "Unknown error"},
		{"no message", 403, `{"success": false}`, "Unknown error"},
		{"plain text body", 404, `Not Found`, "Not Found"},
		{"empty body", 429, ``, "Unknown error"},
		{"json array body", 413, `[1, 2]`, "[1, 2]"},
		{"json null body", 404, `null`, "null"},
		{"generic", 418, `{"message": "teapot"}`, "API error 418: teapot"},
		{"server", 500, `{"error": "boom"}`, "server error 500: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.status, []byte(tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestClassifyServerErrorCarriesBody(t *testing.T) {
	_, err := Classify(503, []byte(`{"message": "maintenance", "retry_in": 30}`))

	var dErr *Error
	require.True(t, errors.As(err, &dErr))
	assert.Equal(t, 503, dErr.StatusCode)
	assert.Equal(t, "maintenance", dErr.Body["message"])
	assert.Equal(t, float64(30), dErr.Body["retry_in"])
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := wrapError(KindNetwork, cause, "network connection failed")

	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, ErrDAM)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(cause))
	assert.Equal(t, "network connection failed: dial tcp: connection refused", err.Error())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
