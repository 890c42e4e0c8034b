package web

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Proton-105/sohaeng-web/internal/domain"
	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
	"github.com/Proton-105/sohaeng-web/internal/i18n"
	"github.com/Proton-105/sohaeng-web/internal/middleware"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/internal/table"
)

const (
	adminPath         = "/admin"
	adminUsersPath    = "/admin/users"
	adminMatchesPath  = "/admin/matches"
	adminPaymentsPath = "/admin/payments"
)

var (
	matchStatuses   = []string{string(domain.MatchPending), string(domain.MatchActive), string(domain.MatchClosed)}
	paymentStatuses = []string{"pending", "verified"}
)

type headerView struct {
	Label    string
	Href     string
	Sortable bool
	Active   bool
	Dir      table.Direction
}

type tableView struct {
	Section  string
	Path     string
	Headers  []headerView
	Rows     [][]template.HTML
	Search   string
	Searched bool
	Status   string
	Statuses []string
}

// buildTable sorts rows by the query and renders every cell. Column labels are catalog keys.
func buildTable[R any](t *table.Table[R], tr i18n.Translator, path string, q url.Values, rows []R) tableView {
	t.ParseSort(q)

	view := tableView{Path: path}
	for _, col := range t.Columns {
		h := headerView{Label: tr.T(col.Label), Sortable: col.Sortable}
		if col.Sortable {
			h.Href = path + "?" + t.NextSort(col.Key).Query(q)
			h.Active = t.Sort.Key == col.Key
			h.Dir = t.Sort.Dir
		}
		view.Headers = append(view.Headers, h)
	}

	for _, row := range t.Rows(rows) {
		cells := make([]template.HTML, 0, len(t.Columns))
		for _, col := range t.Columns {
			cells = append(cells, t.Cell(col, row))
		}
		view.Rows = append(view.Rows, cells)
	}

	return view
}

// actionButton renders a one-button POST form carrying its own form token.
func actionButton(action, label string) template.HTML {
	return template.HTML(fmt.Sprintf(
		`<form method="post" action="%s" class="inline"><input type="hidden" name="%s" value="%s"><button type="submit" class="btn btn-small">%s</button></form>`,
		template.HTMLEscapeString(action),
		middleware.FormTokenField,
		uuid.NewString(),
		template.HTMLEscapeString(label),
	))
}

func nickname(p *domain.Profile) string {
	if p == nil {
		return ""
	}
	return p.Nickname
}

// adminFail renders a backend refusal with the admin wording. Role checks belong
// to the backend so a demoted or promoted user sees the change without re-login.
func (s *Server) adminFail(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.StatusOf(err) != http.StatusForbidden {
		s.fail(w, r, err)
		return
	}

	s.Errors.Handle(r.Context(), err)
	p := s.page(r, "admin.title", nil)
	p.Data = errorView{Message: p.T.T("admin.forbidden"), Status: http.StatusForbidden}
	s.render(w, r, http.StatusForbidden, "error", p)
}

func (s *Server) adminHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "admin", s.page(r, "admin.title", nil))
}

func (s *Server) adminUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := q.Get("q")
	page, _ := strconv.Atoi(q.Get("page"))

	users, err := s.API.Admin().Users(r.Context(), viewer(r.Context()), search, page)
	if err != nil {
		s.adminFail(w, r, err)
		return
	}

	t := table.New(
		table.Column[domain.AdminUser]{Key: "id", Label: "admin.col.id", Sortable: true, Value: func(u domain.AdminUser) any { return u.ID }},
		table.Column[domain.AdminUser]{Key: "nickname", Label: "admin.col.nickname", Sortable: true, Value: func(u domain.AdminUser) any { return nickname(u.Profile) }},
		table.Column[domain.AdminUser]{Key: "role", Label: "admin.col.role", Sortable: true, Value: func(u domain.AdminUser) any { return u.Role }},
		table.Column[domain.AdminUser]{Key: "phoneVerified", Label: "admin.col.phone_verified", Sortable: true, Value: func(u domain.AdminUser) any { return u.PhoneVerified }},
		table.Column[domain.AdminUser]{Key: "banned", Label: "admin.col.banned", Sortable: true, Value: func(u domain.AdminUser) any { return u.Banned }},
		table.Column[domain.AdminUser]{Key: "createdAt", Label: "admin.col.joined", Sortable: true, Value: func(u domain.AdminUser) any { return u.CreatedAt }},
	)

	p := s.page(r, "admin.users", nil)
	view := buildTable(t, p.T, adminUsersPath, q, users)
	view.Section = "users"
	view.Search = search
	view.Searched = true
	p.Data = view
	s.render(w, r, http.StatusOK, "admin_table", p)
}

func (s *Server) adminMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")

	list, err := s.API.Admin().Matches(r.Context(), viewer(r.Context()), status)
	if err != nil {
		s.adminFail(w, r, err)
		return
	}

	p := s.page(r, "admin.matches", nil)
	activate := p.T.T("admin.activate")

	t := table.New(
		table.Column[domain.AdminMatch]{Key: "id", Label: "admin.col.id", Sortable: true, Value: func(m domain.AdminMatch) any { return m.ID }},
		table.Column[domain.AdminMatch]{Key: "users", Label: "admin.col.users", Value: func(m domain.AdminMatch) any {
			return nickname(m.UserAProfile) + " / " + nickname(m.UserBProfile)
		}},
		table.Column[domain.AdminMatch]{Key: "status", Label: "admin.col.status", Sortable: true, Value: func(m domain.AdminMatch) any { return string(m.Status) }},
		table.Column[domain.AdminMatch]{Key: "payment", Label: "admin.col.payment", Sortable: true, Value: func(m domain.AdminMatch) any {
			if m.Payment == nil {
				return nil
			}
			return m.Payment.Verified()
		}},
		table.Column[domain.AdminMatch]{Key: "createdAt", Label: "admin.col.created", Sortable: true, Value: func(m domain.AdminMatch) any { return m.CreatedAt }},
		table.Column[domain.AdminMatch]{Key: "actions", Label: "admin.col.actions", Render: func(m domain.AdminMatch) template.HTML {
			if m.Status != domain.MatchPending {
				return ""
			}
			return actionButton(adminMatchesPath+"/"+url.PathEscape(m.ID)+"/activate", activate)
		}},
	)

	view := buildTable(t, p.T, adminMatchesPath, q, list)
	view.Section = "matches"
	view.Status = status
	view.Statuses = matchStatuses
	p.Data = view
	s.render(w, r, http.StatusOK, "admin_table", p)
}

func (s *Server) adminPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")

	list, err := s.API.Admin().Payments(r.Context(), viewer(r.Context()), status)
	if err != nil {
		s.adminFail(w, r, err)
		return
	}

	pg := s.page(r, "admin.payments", nil)
	verify := pg.T.T("admin.verify")

	t := table.New(
		table.Column[domain.AdminPayment]{Key: "id", Label: "admin.col.id", Sortable: true, Value: func(row domain.AdminPayment) any { return row.ID }},
		table.Column[domain.AdminPayment]{Key: "matchId", Label: "admin.col.match", Sortable: true, Value: func(row domain.AdminPayment) any { return row.MatchID }},
		table.Column[domain.AdminPayment]{Key: "code", Label: "admin.col.code", Sortable: true, Value: func(row domain.AdminPayment) any { return row.Code }},
		table.Column[domain.AdminPayment]{Key: "amount", Label: "admin.col.amount", Sortable: true, Value: func(row domain.AdminPayment) any { return row.Amount }},
		table.Column[domain.AdminPayment]{Key: "depositor", Label: "admin.col.depositor", Sortable: true, Value: func(row domain.AdminPayment) any { return row.DepositorName }},
		table.Column[domain.AdminPayment]{Key: "verifiedAt", Label: "admin.col.verified_at", Sortable: true, Value: func(row domain.AdminPayment) any { return row.VerifiedAt }},
		table.Column[domain.AdminPayment]{Key: "actions", Label: "admin.col.actions", Render: func(row domain.AdminPayment) template.HTML {
			if row.Verified() {
				return ""
			}
			return actionButton(adminPaymentsPath+"/"+url.PathEscape(row.ID)+"/verify", verify)
		}},
	)

	view := buildTable(t, pg.T, adminPaymentsPath, q, list)
	view.Section = "payments"
	view.Status = status
	view.Statuses = paymentStatuses
	pg.Data = view
	s.render(w, r, http.StatusOK, "admin_table", pg)
}

func (s *Server) adminVerifyPayment(w http.ResponseWriter, r *http.Request) {
	if err := s.API.Admin().VerifyPayment(r.Context(), viewer(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.failBack(w, r, adminPaymentsPath, err)
		return
	}
	s.back(w, r, adminPaymentsPath, notice.Success("admin.verified_done"))
}

func (s *Server) adminActivateMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.API.Admin().ActivateMatch(r.Context(), viewer(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.failBack(w, r, adminMatchesPath, err)
		return
	}
	s.back(w, r, adminMatchesPath, notice.Success("admin.activated_done"))
}

func (s *Server) adminRunRecommendations(w http.ResponseWriter, r *http.Request) {
	if err := s.API.Admin().RunRecommendations(r.Context(), viewer(r.Context())); err != nil {
		s.failBack(w, r, adminPath, err)
		return
	}
	s.back(w, r, adminPath, notice.Success("admin.run_recs_done"))
}
