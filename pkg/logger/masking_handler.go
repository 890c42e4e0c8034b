package logger

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// secretKeys are masked wherever they appear as a key or a key suffix ("kakao_token").
var secretKeys = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"authorization",
	"backend_jwt",
	"cookie",
	"oauth_code",
	"verification_code",
}

// Korean mobile numbers keep their prefix and last four digits.
var phonePattern = regexp.MustCompile(`^(01[016789])-?(\d{3,4})-?(\d{4})$`)

// MaskingHandler hides credentials and phone numbers before records reach the wrapped handler.
type MaskingHandler struct {
	next slog.Handler
}

func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MaskingHandler{next: h.next.WithAttrs(maskAll(attrs))}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	out.AddAttrs(maskAll(attrs)...)
	return h.next.Handle(ctx, out)
}

func maskAll(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = maskAttr(a)
	}
	return out
}

func maskAttr(a slog.Attr) slog.Attr {
	if isSecretKey(a.Key) {
		return slog.String(a.Key, "***")
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskAll(a.Value.Group())...)}
	case slog.KindString:
		if m := phonePattern.FindStringSubmatch(a.Value.String()); m != nil {
			return slog.String(a.Key, m[1]+"-****-"+m[3])
		}
	}
	return a
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, secret := range secretKeys {
		if key == secret || strings.HasSuffix(key, "_"+secret) {
			return true
		}
	}
	return false
}
