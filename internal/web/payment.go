package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Proton-105/sohaeng-web/internal/domain"
	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
	"github.com/Proton-105/sohaeng-web/internal/payment"
	"github.com/Proton-105/sohaeng-web/internal/query"
	"github.com/Proton-105/sohaeng-web/internal/session"
	"github.com/Proton-105/sohaeng-web/internal/validation"
)

type copyButton struct {
	Field  string
	Text   string
	Label  string
	Copied bool
}

type paymentView struct {
	MatchID string
	// Instructions is nil until the viewer starts the transfer.
	Instructions *payment.Instructions
	Account      copyButton
	Code         copyButton
	AckMS        int64
}

type copyResponse struct {
	Field string `json:"field"`
	Text  string `json:"text"`
	Label string `json:"label"`
	Until int64  `json:"until"`
}

func paymentPath(matchID string) string {
	return "/payment/" + url.PathEscape(matchID)
}

// loadPayment resolves the payment remembered for matchID. It never creates one.
func (s *Server) loadPayment(ctx context.Context, sess *session.Session, matchID string) (*domain.Payment, error) {
	if s.Payment.Refs == nil {
		return nil, payment.ErrNoPayment
	}

	id, err := s.Payment.Refs.Lookup(ctx, sess.UserID, matchID)
	if err != nil {
		return nil, err
	}

	key := query.Key{Scope: sess.UserID, Resource: resourcePayment, Params: []string{id}}
	return query.Fetch(ctx, s.Cache, key, func(ctx context.Context) (*domain.Payment, error) {
		return s.API.Payments().Get(ctx, sess, id)
	})
}

func (s *Server) paymentPage(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r.Context())
	matchID := chi.URLParam(r, "matchId")
	q := r.URL.Query()

	if q.Get("refresh") != "" {
		if err := s.Cache.Invalidate(r.Context(), sess.UserID, resourcePayment); err != nil {
			s.Log.WarnContext(r.Context(), "failed to invalidate payment cache", "error", err)
		}
	}

	view := paymentView{MatchID: matchID, AckMS: payment.AckDuration.Milliseconds()}
	p, err := s.loadPayment(r.Context(), sess, matchID)
	switch {
	case errors.Is(err, payment.ErrNoPayment):
	case err != nil:
		s.fail(w, r, err)
		return
	default:
		now := s.Now()
		instr := payment.NewInstructions(*p, s.Payment.Account, s.Payment.Window, now)
		view.Instructions = &instr

		ack := ackFromQuery(q)
		pg := s.page(r, "payment.title", nil)
		view.Account = s.copyButton(pg, instr, ack, payment.FieldAccount, now)
		view.Code = s.copyButton(pg, instr, ack, payment.FieldCode, now)
		pg.Data = view
		s.render(w, r, http.StatusOK, "payment", pg)
		return
	}

	s.render(w, r, http.StatusOK, "payment", s.page(r, "payment.title", view))
}

func (s *Server) copyButton(pg Page, instr payment.Instructions, ack payment.CopyAck, field string, now time.Time) copyButton {
	text, _ := instr.CopyText(field)
	b := copyButton{Field: field, Text: text, Copied: ack.Copied(field, now)}
	if b.Copied {
		b.Label = pg.T.T("payment.copied")
	} else {
		b.Label = pg.T.T("payment.copy")
	}
	return b
}

// ackFromQuery restores the acknowledgement a no-script copy redirect carried.
func ackFromQuery(q url.Values) payment.CopyAck {
	field := q.Get("copied")
	at, err := strconv.ParseInt(q.Get("at"), 10, 64)
	if field == "" || err != nil {
		return payment.CopyAck{}
	}
	return payment.CopyAck{}.Copy(field, time.UnixMilli(at))
}

// paymentCreate starts the transfer. The backend returns the existing payment when one was already made.
func (s *Server) paymentCreate(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r.Context())
	form := validation.PaymentIntentForm{MatchID: chi.URLParam(r, "matchId")}
	back := paymentPath(form.MatchID)

	if err := s.Validate.Validate(form); err != nil {
		s.failBack(w, r, back, apperrors.NewValidationError(err.Error()))
		return
	}

	p, err := s.API.Payments().CreateIntent(r.Context(), sess, form.MatchID)
	if err != nil {
		s.failBack(w, r, back, err)
		return
	}

	if s.Payment.Refs != nil {
		if err := s.Payment.Refs.Remember(r.Context(), sess.UserID, form.MatchID, p.ID); err != nil {
			s.Log.WarnContext(r.Context(), "failed to remember payment", "payment_id", p.ID, "error", err)
		}
	}
	if err := s.Cache.Invalidate(r.Context(), sess.UserID, resourceMatches); err != nil {
		s.Log.WarnContext(r.Context(), "failed to invalidate matches cache", "error", err)
	}

	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Server) paymentCountdown(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r.Context())

	p, err := s.loadPayment(r.Context(), sess, chi.URLParam(r, "matchId"))
	if errors.Is(err, payment.ErrNoPayment) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		msg, _ := s.Errors.Handle(r.Context(), err)
		http.Error(w, msg, http.StatusBadGateway)
		return
	}

	if err := s.Payment.Streamer.Stream(r.Context(), w, *p); err != nil {
		if errors.Is(err, payment.ErrStreamingUnsupported) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.Log.DebugContext(r.Context(), "countdown stream ended", "error", err)
	}
}

// paymentCopy acknowledges a copy button. Scripted pages get JSON, plain forms a redirect back.
func (s *Server) paymentCopy(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r.Context())
	matchID := chi.URLParam(r, "matchId")
	field := r.PostFormValue("field")

	p, err := s.loadPayment(r.Context(), sess, matchID)
	if errors.Is(err, payment.ErrNoPayment) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.failBack(w, r, paymentPath(matchID), err)
		return
	}

	now := s.Now()
	instr := payment.NewInstructions(*p, s.Payment.Account, s.Payment.Window, now)
	text, ok := instr.CopyText(field)
	if !ok {
		http.Error(w, "unknown field", http.StatusBadRequest)
		return
	}
	ack := payment.CopyAck{}.Copy(field, now)

	if !strings.Contains(r.Header.Get("Accept"), "application/json") {
		to := paymentPath(matchID) + "?" + url.Values{
			"copied": {field},
			"at":     {strconv.FormatInt(now.UnixMilli(), 10)},
		}.Encode()
		http.Redirect(w, r, to, http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(copyResponse{
		Field: field,
		Text:  text,
		Label: s.translator(r).T("payment.copied"),
		Until: ack.Until.UnixMilli(),
	})
}
