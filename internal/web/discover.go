package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/Proton-105/sohaeng-web/internal/account"
	"github.com/Proton-105/sohaeng-web/internal/api"
	"github.com/Proton-105/sohaeng-web/internal/domain"
	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/internal/query"
	"github.com/Proton-105/sohaeng-web/internal/swipe"
	"github.com/Proton-105/sohaeng-web/internal/validation"
	"github.com/Proton-105/sohaeng-web/internal/week"
)

const discoverPath = "/discover"

// RecommendationFeed reads a viewer's weekly batch through the query cache.
func RecommendationFeed(client *api.Client, cache *query.Cache) swipe.Feed {
	return func(ctx context.Context, v swipe.Viewer, batch string) ([]domain.RecommendationItem, error) {
		key := query.Key{Scope: v.UserID, Resource: account.ResourceRecommendations, Params: []string{batch}}
		return query.Fetch(ctx, cache, key, func(ctx context.Context) ([]domain.RecommendationItem, error) {
			return client.Recommendations().List(ctx, v, batch)
		})
	}
}

type discoverView struct {
	Phase    swipe.Phase
	Week     string
	Card     ProfileCard
	Target   string
	Position int
	Total    int
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r.Context())
	batch := week.Label(s.Now())

	flow, err := s.Swipe.Load(r.Context(), swipeViewer(sess), batch)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	view := discoverView{
		Phase:    flow.Phase(),
		Week:     batch,
		Position: flow.Position(),
		Total:    len(flow.Items),
	}
	if item, ok := flow.Current(); ok {
		view.Card = NewProfileCard(item.Profile, s.currentYear())
		view.Target = item.TargetUserID
	}

	s.render(w, r, http.StatusOK, "discover", s.page(r, "discover.title", view))
}

// discoverAct answers the card the form was rendered for and always returns to the feed.
func (s *Server) discoverAct(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r.Context())

	action, err := swipe.ParseAction(r.PostFormValue("action"))
	if err != nil {
		s.back(w, r, discoverPath, notice.Error("입력값을 확인해주세요."))
		return
	}

	batch := r.PostFormValue("week")
	if batch == "" {
		batch = week.Label(s.Now())
	}
	target := r.PostFormValue("target")

	if action == swipe.ActionLike {
		like := validation.LikeForm{ToUserID: target, BatchWeek: batch}
		if err := s.Validate.Validate(like); err != nil {
			s.failBack(w, r, discoverPath, apperrors.NewValidationError(err.Error()))
			return
		}
	}

	_, err = s.Swipe.Act(r.Context(), swipeViewer(sess), batch, action, target)
	switch {
	case err == nil:
		http.Redirect(w, r, discoverPath, http.StatusSeeOther)
	case errors.Is(err, swipe.ErrStaleCard), errors.Is(err, swipe.ErrFlowLocked), errors.Is(err, swipe.ErrNoCurrentCard):
		s.back(w, r, discoverPath, notice.Info("errors.stale"))
	default:
		s.failBack(w, r, discoverPath, err)
	}
}
