package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Proton-105/sohaeng-web/internal/domain"
)

// SyncKakaoRequest hands a Kakao identity to the backend.
type SyncKakaoRequest struct {
	KakaoUserID string `json:"kakaoUserId"`
	Email       string `json:"email,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
}

// SyncKakaoResponse carries the backend-issued bearer token.
type SyncKakaoResponse struct {
	JWT  string      `json:"jwt"`
	User domain.User `json:"user"`
}

// OK is the body of acknowledgement-only endpoints.
type OK struct {
	OK bool `json:"ok"`
}

// AuthAPI groups identity hand-off calls.
type AuthAPI struct{ c *Client }

// UsersAPI groups calls about the viewer's own account.
type UsersAPI struct{ c *Client }

// RecommendationsAPI groups weekly feed calls.
type RecommendationsAPI struct{ c *Client }

// MatchesAPI groups match calls.
type MatchesAPI struct{ c *Client }

// PaymentsAPI groups transfer payment calls.
type PaymentsAPI struct{ c *Client }

// AdminAPI groups admin console calls.
type AdminAPI struct{ c *Client }

func (c *Client) Auth() AuthAPI                       { return AuthAPI{c} }
func (c *Client) Users() UsersAPI                     { return UsersAPI{c} }
func (c *Client) Recommendations() RecommendationsAPI { return RecommendationsAPI{c} }
func (c *Client) Matches() MatchesAPI                 { return MatchesAPI{c} }
func (c *Client) Payments() PaymentsAPI               { return PaymentsAPI{c} }
func (c *Client) Admin() AdminAPI                     { return AdminAPI{c} }

// SyncKakao exchanges a Kakao identity for a backend token. No token is attached.
func (a AuthAPI) SyncKakao(ctx context.Context, req SyncKakaoRequest) (*SyncKakaoResponse, error) {
	var out SyncKakaoResponse
	if err := a.c.DoClient(ctx, "", http.MethodPost, "/auth/sync-kakao", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u UsersAPI) Me(ctx context.Context, creds Credentials) (*domain.Me, error) {
	var out domain.Me
	if err := u.c.DoServer(ctx, creds, http.MethodGet, "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMe replaces account-level fields through PUT /me.
func (u UsersAPI) UpdateMe(ctx context.Context, creds Credentials, patch map[string]any) (*domain.Me, error) {
	var out domain.Me
	if err := u.c.DoServer(ctx, creds, http.MethodPut, "/me", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u UsersAPI) UpdateProfile(ctx context.Context, creds Credentials, profile domain.Profile) (*domain.Profile, error) {
	var out domain.Profile
	if err := u.c.DoServer(ctx, creds, http.MethodPut, "/profile", profile, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u UsersAPI) UpdatePreferences(ctx context.Context, creds Credentials, prefs domain.Preferences) (*domain.Preferences, error) {
	var out domain.Preferences
	if err := u.c.DoServer(ctx, creds, http.MethodPut, "/preferences", prefs, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the viewer's batch for week, e.g. "2025-W37".
func (r RecommendationsAPI) List(ctx context.Context, creds Credentials, week string) ([]domain.RecommendationItem, error) {
	var out []domain.RecommendationItem
	path := "/recommendations?" + url.Values{"week": {week}}.Encode()
	if err := r.c.do(ctx, call{method: http.MethodGet, path: path, route: "/recommendations", token: bearer(creds), out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

// SendLike posts a like with an explicit token, since deliveries may run after the page request ended.
func (r RecommendationsAPI) SendLike(ctx context.Context, token string, payload domain.LikePayload) error {
	var out OK
	return r.c.DoClient(ctx, token, http.MethodPost, "/likes", payload, &out)
}

func (m MatchesAPI) List(ctx context.Context, creds Credentials) ([]domain.Match, error) {
	var out []domain.Match
	if err := m.c.DoServer(ctx, creds, http.MethodGet, "/matches", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m MatchesAPI) Get(ctx context.Context, creds Credentials, matchID string) (*domain.MatchDetail, error) {
	var out domain.MatchDetail
	err := m.c.do(ctx, call{
		method: http.MethodGet,
		path:   "/matches/" + url.PathEscape(matchID),
		route:  "/matches/{id}",
		token:  bearer(creds),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIntent returns the payment for matchID, creating it when absent.
func (p PaymentsAPI) CreateIntent(ctx context.Context, creds Credentials, matchID string) (*domain.Payment, error) {
	var out domain.Payment
	body := map[string]string{"matchId": matchID}
	if err := p.c.DoServer(ctx, creds, http.MethodPost, "/payments/intent", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p PaymentsAPI) Get(ctx context.Context, creds Credentials, paymentID string) (*domain.Payment, error) {
	var out domain.Payment
	err := p.c.do(ctx, call{
		method: http.MethodGet,
		path:   "/payments/" + url.PathEscape(paymentID),
		route:  "/payments/{id}",
		token:  bearer(creds),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Users lists accounts. query filters by nickname on the backend.
func (a AdminAPI) Users(ctx context.Context, creds Credentials, query string, page int) ([]domain.AdminUser, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}

	var out []domain.AdminUser
	if err := a.c.do(ctx, call{method: http.MethodGet, path: withQuery("/admin/users", params), route: "/admin/users", token: bearer(creds), out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (a AdminAPI) Matches(ctx context.Context, creds Credentials, status string) ([]domain.AdminMatch, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}

	var out []domain.AdminMatch
	if err := a.c.do(ctx, call{method: http.MethodGet, path: withQuery("/admin/matches", params), route: "/admin/matches", token: bearer(creds), out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (a AdminAPI) Payments(ctx context.Context, creds Credentials, status string) ([]domain.AdminPayment, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}

	var out []domain.AdminPayment
	if err := a.c.do(ctx, call{method: http.MethodGet, path: withQuery("/admin/payments", params), route: "/admin/payments", token: bearer(creds), out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (a AdminAPI) VerifyPayment(ctx context.Context, creds Credentials, paymentID string) error {
	return a.c.do(ctx, call{
		method: http.MethodPost,
		path:   "/admin/payments/" + url.PathEscape(paymentID) + "/verify",
		route:  "/admin/payments/{id}/verify",
		token:  bearer(creds),
	})
}

func (a AdminAPI) ActivateMatch(ctx context.Context, creds Credentials, matchID string) error {
	return a.c.do(ctx, call{
		method: http.MethodPost,
		path:   "/admin/matches/" + url.PathEscape(matchID) + "/activate",
		route:  "/admin/matches/{id}/activate",
		token:  bearer(creds),
	})
}

// RunRecommendations triggers the weekly batch build on the backend.
func (a AdminAPI) RunRecommendations(ctx context.Context, creds Credentials) error {
	return a.c.DoServer(ctx, creds, http.MethodPost, "/admin/recs/run", nil, nil)
}

func bearer(creds Credentials) string {
	if creds == nil {
		return ""
	}
	return creds.BearerToken()
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}
