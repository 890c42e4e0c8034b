package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
)

const (
	KakaoAuthURL     = "https://kauth.kakao.com/oauth/authorize"
	KakaoTokenURL    = "https://kauth.kakao.com/oauth/token"
	KakaoUserInfoURL = "https://kapi.kakao.com/v2/user/me"
)

// Identity is what the identity provider tells us about the visitor.
type Identity struct {
	KakaoUserID string
	Email       string
	Nickname    string
}

// Provider is an OAuth2 identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (*Identity, error)
}

// KakaoProvider signs visitors in with Kakao.
type KakaoProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// KakaoOption customises a KakaoProvider.
type KakaoOption func(*KakaoProvider)

// WithKakaoEndpoints points the provider at other hosts.
func WithKakaoEndpoints(authURL, tokenURL, userInfoURL string) KakaoOption {
	return func(p *KakaoProvider) {
		p.cfg.Endpoint.AuthURL = authURL
		p.cfg.Endpoint.TokenURL = tokenURL
		p.userInfoURL = userInfoURL
	}
}

func NewKakaoProvider(clientID, clientSecret, redirectURL string, opts ...KakaoOption) *KakaoProvider {
	p := &KakaoProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   KakaoAuthURL,
				TokenURL:  KakaoTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"profile_nickname", "account_email"},
		},
		userInfoURL: KakaoUserInfoURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *KakaoProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

type kakaoUser struct {
	ID           int64 `json:"id"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname string `json:"nickname"`
		} `json:"profile"`
	} `json:"kakao_account"`
	Properties struct {
		Nickname string `json:"nickname"`
	} `json:"properties"`
}

// Identify exchanges the authorization code and loads the Kakao user.
func (p *KakaoProvider) Identify(ctx context.Context, code string) (*Identity, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange kakao code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch kakao user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("fetch kakao user: status %d: %s", resp.StatusCode, body)
	}

	var u kakaoUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode kakao user: %w", err)
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("kakao user without id")
	}

	nickname := u.KakaoAccount.Profile.Nickname
	if nickname == "" {
		nickname = u.Properties.Nickname
	}

	return &Identity{
		KakaoUserID: strconv.FormatInt(u.ID, 10),
		Email:       u.KakaoAccount.Email,
		Nickname:    nickname,
	}, nil
}
