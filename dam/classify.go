package dam

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/damsdk/models"
)

const unknownErrorMessage = "Unknown error"

// Classify maps an HTTP status and raw body to the parsed envelope or a typed error.
// It is a pure function shared by the sync and async clients.
func Classify(status int, body []byte) (models.Envelope, error) {
	env := parseEnvelope(body)
	if status == http.StatusOK {
		return env, nil
	}

	msg := errorMessage(env)
	kind := KindUnknown
	switch {
	case status == http.StatusUnauthorized:
		kind = KindAuthentication
	case status == http.StatusForbidden:
		kind = KindAuthorization
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusRequestEntityTooLarge:
		kind = KindFileTooLarge
	case status == http.StatusUnprocessableEntity:
		kind = KindValidation
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status >= 500 && status < 600:
		return nil, &Error{
			Kind:       KindServer,
			Message:    fmt.Sprintf("server error %d: %s", status, msg),
			StatusCode: status,
			Body:       env,
		}
	default:
		msg = fmt.Sprintf("API error %d: %s", status, msg)
	}

	return nil, &Error{Kind: kind, Message: msg, StatusCode: status, Body: env}
}

// parseEnvelope decodes a JSON object body. Anything else becomes {"message": <text>}.
func parseEnvelope(body []byte) models.Envelope {
	var env models.Envelope
	if err := json.Unmarshal(body, &env); err == nil && env != nil {
		return env
	}

	text := string(body)
	if text == "" {
		text = unknownErrorMessage
	}
	return models.Envelope{"message": text}
}

func errorMessage(env models.Envelope) string {
	for _, key := range []string{"message", "error"} {
		if msg := truthyString(env[key]); msg != "" {
			return msg
		}
	}
	return unknownErrorMessage
}

func truthyString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
	case float64:
		if val == 0 {
			return ""
		}
	case map[string]any:
		if len(val) == 0 {
			return ""
		}
	case []any:
		if len(val) == 0 {
			return ""
		}
	}
	return fmt.Sprint(v)
}
