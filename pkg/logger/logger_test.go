package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskingHandler_MasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil)))

	log.Info("session issued",
		slog.String("backend_jwt", "eyJhbGciOi"),
		slog.String("user_id", "u-1"),
		slog.Group("kakao", slog.String("token", "kakao-token"), slog.String("id", "42")),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "***", record["backend_jwt"])
	assert.Equal(t, "u-1", record["user_id"])

	group, ok := record["kakao"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "***", group["token"])
	assert.Equal(t, "42", group["id"])
}

func TestMaskingHandler_MasksWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil))).
		With(slog.String("Authorization", "Bearer abc"))

	log.Info("backend call")

	assert.NotContains(t, buf.String(), "Bearer abc")
	assert.Contains(t, buf.String(), `"Authorization":"***"`)
}

func TestMaskingHandler_SuffixKeysAndPhones(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil)))

	log.Info("verification requested",
		slog.String("kakao_token", "abc"),
		slog.String("phone", "010-1234-5678"),
		slog.String("tokens_left", "3"),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "***", record["kakao_token"])
	assert.Equal(t, "010-****-5678", record["phone"])
	assert.Equal(t, "3", record["tokens_left"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestMiddleware_CorrelationID(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
	})

	t.Run("malformed replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "bad id\tvalue")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.NotEqual(t, "bad id\tvalue", seen)
		assert.Len(t, seen, 36)
	})
}

func TestCorrelationIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}
