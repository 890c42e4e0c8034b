package validation

import (
	"strings"

	"github.com/Proton-105/sohaeng-web/internal/domain"
)

const (
	MaxPhotos   = 6
	MaxRegions  = 10
	MaxKeywords = 20
)

// ProfileForm is the profile edit form.
type ProfileForm struct {
	Nickname  string            `json:"nickname" validate:"min=2,max=20"`
	Gender    string            `json:"gender" validate:"oneof=M F"`
	BirthYear int               `json:"birthYear" validate:"birthyear"`
	Height    *int              `json:"height,omitempty" validate:"omitempty,min=120,max=220"`
	Region    string            `json:"region,omitempty" validate:"max=30"`
	Job       string            `json:"job,omitempty" validate:"max=30"`
	Intro     string            `json:"intro,omitempty" validate:"max=500"`
	Photos    []string          `json:"photos" validate:"max=6,dive,url"`
	Visible   domain.Visibility `json:"visible"`
}

// ProfileFormFrom prefills the form from a stored profile.
func ProfileFormFrom(p *domain.Profile) ProfileForm {
	if p == nil {
		return ProfileForm{Visible: domain.DefaultVisibility()}
	}

	return ProfileForm{
		Nickname:  p.Nickname,
		Gender:    string(p.Gender),
		BirthYear: p.BirthYear,
		Height:    p.Height,
		Region:    p.Region,
		Job:       p.Job,
		Intro:     p.Intro,
		Photos:    append([]string(nil), p.Photos...),
		Visible:   p.Visible,
	}
}

// Normalize trims text and drops empty photo slots.
func (f *ProfileForm) Normalize() {
	f.Nickname = strings.TrimSpace(f.Nickname)
	f.Region = strings.TrimSpace(f.Region)
	f.Job = strings.TrimSpace(f.Job)
	f.Intro = strings.TrimSpace(f.Intro)
	f.Photos = compact(f.Photos)
}

func (f ProfileForm) Profile() domain.Profile {
	photos := f.Photos
	if photos == nil {
		photos = []string{}
	}

	return domain.Profile{
		Nickname:  f.Nickname,
		Gender:    domain.Gender(f.Gender),
		BirthYear: f.BirthYear,
		Height:    f.Height,
		Region:    f.Region,
		Job:       f.Job,
		Intro:     f.Intro,
		Photos:    photos,
		Visible:   f.Visible,
	}
}

// PreferencesForm is the matching preferences form.
type PreferencesForm struct {
	TargetGender string   `json:"targetGender" validate:"oneof=M F"`
	AgeMin       int      `json:"ageMin" validate:"min=19,max=100"`
	AgeMax       int      `json:"ageMax" validate:"min=19,max=100,gtefield=AgeMin"`
	Regions      []string `json:"regions" validate:"max=10"`
	Keywords     []string `json:"keywords" validate:"max=20"`
	Blocks       []string `json:"blocks"`
}

func PreferencesFormFrom(p *domain.Preferences) PreferencesForm {
	if p == nil {
		return PreferencesForm{AgeMin: MinAge, AgeMax: 40}
	}

	return PreferencesForm{
		TargetGender: string(p.TargetGender),
		AgeMin:       p.AgeMin,
		AgeMax:       p.AgeMax,
		Regions:      append([]string(nil), p.Regions...),
		Keywords:     append([]string(nil), p.Keywords...),
		Blocks:       append([]string(nil), p.Blocks...),
	}
}

// Normalize splits comma separated inputs and drops empty entries.
func (f *PreferencesForm) Normalize() {
	f.Regions = splitList(f.Regions)
	f.Keywords = splitList(f.Keywords)
	f.Blocks = splitList(f.Blocks)
}

func (f PreferencesForm) Preferences() domain.Preferences {
	return domain.Preferences{
		TargetGender: domain.Gender(f.TargetGender),
		AgeMin:       f.AgeMin,
		AgeMax:       f.AgeMax,
		Regions:      nonNil(f.Regions),
		Keywords:     nonNil(f.Keywords),
		Blocks:       nonNil(f.Blocks),
	}
}

// LikeForm is an outbound like.
type LikeForm struct {
	ToUserID  string `json:"toUserId" validate:"required"`
	BatchWeek string `json:"batchWeek" validate:"weeklabel"`
}

func (f LikeForm) Payload() domain.LikePayload {
	return domain.LikePayload{ToUserID: f.ToUserID, BatchWeek: f.BatchWeek}
}

// PaymentIntentForm starts a bank transfer for a match.
type PaymentIntentForm struct {
	MatchID string `json:"matchId" validate:"required"`
}

// Joined renders a list for a single comma separated input.
func Joined(list []string) string {
	return strings.Join(list, ", ")
}

func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func compact(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
