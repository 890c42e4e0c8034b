package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Proton-105/sohaeng-web/internal/idempotency"
	"github.com/Proton-105/sohaeng-web/internal/session"
)

// FormTokenField is the hidden input carrying a per-render submission token.
const FormTokenField = "form_token"

const formReplayTTL = 10 * time.Minute

var errNotCommitted = errors.New("form submission was not committed")

// formOutcome is what a replayed submission needs to answer the same way.
type formOutcome struct {
	Status   int    `json:"status"`
	Location string `json:"location,omitempty"`
}

// bufferedResponse holds a form handler's answer until it is known whether the submission committed.
type bufferedResponse struct {
	header http.Header
	status int
	body   []byte
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	b.body = append(b.body, p...)
	return len(p), nil
}

func (b *bufferedResponse) flushTo(w http.ResponseWriter) {
	for key, values := range b.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(b.body)
}

// Idempotency makes a signed-in POST carrying a form token run at most once.
// A resubmission gets the first answer again, a redirect for post/redirect/get handlers.
// Responses with status 400 or above are not remembered, so a corrected form can be resent with the same token.
func Idempotency(manager idempotency.Manager, log *slog.Logger) func(http.Handler) http.Handler {
	if manager == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := formKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			buf := &bufferedResponse{header: make(http.Header)}
			result, err := manager.Execute(r.Context(), key, formReplayTTL, func(context.Context) (any, error) {
				next.ServeHTTP(buf, r)
				if buf.status >= http.StatusBadRequest {
					return nil, errNotCommitted
				}
				return formOutcome{Status: buf.status, Location: buf.header.Get("Location")}, nil
			})

			switch {
			case errors.Is(err, errNotCommitted):
				buf.flushTo(w)
			case errors.Is(err, idempotency.ErrRequestInProgress):
				http.Error(w, "이미 처리 중인 요청입니다.", http.StatusConflict)
			case err != nil:
				log.ErrorContext(r.Context(), "idempotent form failed", slog.String("path", r.URL.Path), slog.Any("error", err))
				if buf.status != 0 {
					buf.flushTo(w)
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			case result.FromCache:
				replay(w, r, result)
			default:
				buf.flushTo(w)
			}
		})
	}
}

func formKey(r *http.Request) string {
	if r.Method != http.MethodPost {
		return ""
	}
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return ""
	}
	token := r.Header.Get("X-Form-Token")
	if token == "" {
		token = r.PostFormValue(FormTokenField)
	}
	if token == "" {
		return ""
	}
	return idempotency.FormKey(sess.UserID, r.URL.Path, token)
}

func replay(w http.ResponseWriter, r *http.Request, result *idempotency.Result) {
	var outcome formOutcome
	if err := result.Decode(&outcome); err != nil || outcome.Location == "" {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, outcome.Location, http.StatusSeeOther)
}
