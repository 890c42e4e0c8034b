package web

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/Proton-105/sohaeng-web/internal/domain"
	"github.com/Proton-105/sohaeng-web/internal/query"
	"github.com/Proton-105/sohaeng-web/internal/week"
)

const (
	resourceMatches = "matches"
	resourcePayment = "payment"
)

type matchRow struct {
	ID        string
	Status    domain.MatchStatus
	CreatedAt string
}

type matchView struct {
	Match domain.Match
	Card  ProfileCard
	// Payable is true while the match still waits for a transfer.
	Payable bool
}

func (s *Server) matches(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r.Context())

	key := query.Key{Scope: sess.UserID, Resource: resourceMatches}
	list, err := query.Fetch(r.Context(), s.Cache, key, func(ctx context.Context) ([]domain.Match, error) {
		return s.API.Matches().List(ctx, sess)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })

	rows := make([]matchRow, 0, len(list))
	for _, m := range list {
		rows = append(rows, matchRow{ID: m.ID, Status: m.Status, CreatedAt: m.CreatedAt.In(week.Seoul).Format("2006-01-02")})
	}

	s.render(w, r, http.StatusOK, "matches", s.page(r, "matches.title", rows))
}

func (s *Server) matchDetail(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r.Context())
	id := chi.URLParam(r, "id")

	key := query.Key{Scope: sess.UserID, Resource: resourceMatches, Params: []string{id}}
	detail, err := query.Fetch(r.Context(), s.Cache, key, func(ctx context.Context) (*domain.MatchDetail, error) {
		return s.API.Matches().Get(ctx, sess, id)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	view := matchView{
		Match:   detail.Match,
		Card:    NewProfileCard(detail.OtherProfile, s.currentYear()),
		Payable: detail.Match.Status == domain.MatchPending,
	}
	s.render(w, r, http.StatusOK, "match", s.page(r, "match.title", view))
}
