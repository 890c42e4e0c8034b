package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
	"github.com/Proton-105/sohaeng-web/internal/i18n"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/internal/session"
	"github.com/Proton-105/sohaeng-web/internal/swipe"
	"github.com/Proton-105/sohaeng-web/internal/week"
)

func (s *Server) translator(r *http.Request) i18n.Translator {
	return s.I18n.Translator(s.I18n.Negotiate(r.Header.Get("Accept-Language")))
}

// page builds the template data and drains the viewer's pending notices.
func (s *Server) page(r *http.Request, titleKey string, data any) Page {
	t := s.translator(r)
	p := Page{
		T:         t,
		Title:     t.T(titleKey),
		FormToken: uuid.NewString(),
		Data:      data,
		NoticeMS:  notice.DisplayDuration.Milliseconds(),
	}

	if sess, ok := session.FromContext(r.Context()); ok {
		p.Session = sess
		if s.Notices != nil {
			notices, err := s.Notices.Drain(r.Context(), sess.UserID)
			if err != nil {
				s.Log.WarnContext(r.Context(), "failed to drain notices", slog.String("user_id", sess.UserID), slog.Any("error", err))
			}
			for i := range notices {
				notices[i].Text = t.T(notices[i].Text)
			}
			p.Notices = notices
		}
	}

	return p
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	if err := s.views.Render(w, status, name, page); err != nil {
		s.Log.ErrorContext(r.Context(), "failed to render page", slog.String("page", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type errorView struct {
	Message string
	Status  int
}

// fail renders err as an error page. An expired backend token ends the session.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	msg, _ := s.Errors.Handle(r.Context(), err)

	if apperrors.StatusOf(err) == http.StatusUnauthorized && s.Cookies != nil {
		s.Cookies.Clear(w)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	status := apperrors.Classify(err).Status
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}

	p := s.page(r, "errors.generic", nil)
	p.Data = errorView{Message: p.T.T(msg), Status: status}
	s.render(w, r, status, "error", p)
}

// back queues a notice for the viewer and redirects to to with 303.
func (s *Server) back(w http.ResponseWriter, r *http.Request, to string, n notice.Notice) {
	if sess, ok := session.FromContext(r.Context()); ok && s.Notices != nil && n.Text != "" {
		if err := s.Notices.Push(r.Context(), sess.UserID, n); err != nil {
			s.Log.WarnContext(r.Context(), "failed to queue notice", slog.Any("error", err))
		}
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// failBack reports err and returns the viewer to to with the error as a notice.
func (s *Server) failBack(w http.ResponseWriter, r *http.Request, to string, err error) {
	msg, _ := s.Errors.Handle(r.Context(), err)
	s.back(w, r, to, notice.Error(msg))
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, "errors.not_found", nil)
	p.Data = errorView{Message: p.T.T("errors.not_found"), Status: http.StatusNotFound}
	s.render(w, r, http.StatusNotFound, "error", p)
}

func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "landing", s.page(r, "app.name", nil))
}

func (s *Server) authError(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "auth_error", s.page(r, "auth.error.title", r.URL.Query().Get("error")))
}

// viewer returns the session the gate attached. Protected routes always have one.
func viewer(ctx context.Context) *session.Session {
	sess, _ := session.FromContext(ctx)
	return sess
}

func swipeViewer(sess *session.Session) swipe.Viewer {
	return swipe.Viewer{UserID: sess.UserID, Token: sess.BackendToken}
}

func (s *Server) currentYear() int {
	return s.Now().In(week.Seoul).Year()
}
