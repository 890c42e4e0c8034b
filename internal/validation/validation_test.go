package validation

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sohaeng-web/internal/domain"
)

func fixedValidator() *Validator {
	return NewWithClock(func() time.Time { return time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC) })
}

func validProfile() ProfileForm {
	return ProfileForm{
		Nickname:  "민수",
		Gender:    "M",
		BirthYear: 1995,
		Photos:    []string{"https://res.cloudinary.com/demo/a.jpg"},
		Visible:   domain.DefaultVisibility(),
	}
}

func photos(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://res.cloudinary.com/demo/%d.jpg", i)
	}
	return out
}

func TestValidate_Profile(t *testing.T) {
	v := fixedValidator()
	tall := 230

	tests := []struct {
		name   string
		mutate func(*ProfileForm)
		field  string
		msg    string
	}{
		{"valid", func(*ProfileForm) {}, "", ""},
		{"short nickname", func(f *ProfileForm) { f.Nickname = "a" }, "nickname", "닉네임은 최소 2자 이상이어야 합니다."},
		{"long nickname", func(f *ProfileForm) { f.Nickname = strings.Repeat("가", 21) }, "nickname", "닉네임은 20자를 초과할 수 없습니다."},
		{"missing gender", func(f *ProfileForm) { f.Gender = "" }, "gender", "성별을 선택해주세요."},
		{"too old", func(f *ProfileForm) { f.BirthYear = 1949 }, "birthYear", "출생연도가 너무 이릅니다."},
		{"too young", func(f *ProfileForm) { f.BirthYear = 2007 }, "birthYear", "만 19세 이상만 가입 가능합니다."},
		{"height out of range", func(f *ProfileForm) { f.Height = &tall }, "height", ""},
		{"long intro", func(f *ProfileForm) { f.Intro = strings.Repeat("a", 501) }, "intro", "자기소개는 500자를 초과할 수 없습니다."},
		{"seven photos", func(f *ProfileForm) { f.Photos = photos(7) }, "photos", "사진은 최대 6장까지 업로드 가능합니다."},
		{"bad photo url", func(f *ProfileForm) { f.Photos = []string{"not a url"} }, "photos", "올바른 URL 형식이어야 합니다."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validProfile()
			tt.mutate(&form)

			err := v.Validate(form)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			fe, ok := AsFieldErrors(err)
			require.True(t, ok, "expected field errors, got %v", err)
			require.Contains(t, fe, tt.field)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, fe[tt.field])
			}
		})
	}
}

func TestValidate_BirthYearBoundary(t *testing.T) {
	v := fixedValidator()
	assert.Equal(t, 2006, v.MaxBirthYear())

	form := validProfile()
	form.BirthYear = 2006
	assert.NoError(t, v.Validate(form))

	form.BirthYear = 1950
	assert.NoError(t, v.Validate(form))
}

func TestValidate_Preferences(t *testing.T) {
	v := fixedValidator()

	form := PreferencesForm{TargetGender: "F", AgeMin: 40, AgeMax: 30}
	fe, ok := AsFieldErrors(v.Validate(form))
	require.True(t, ok)
	assert.Equal(t, "최소 연령은 최대 연령보다 작아야 합니다.", fe["ageMax"])
	assert.NotContains(t, fe, "ageMin")

	form.AgeMax = 40
	assert.NoError(t, v.Validate(form))

	form.Regions = make([]string, 11)
	fe, ok = AsFieldErrors(v.Validate(form))
	require.True(t, ok)
	assert.Equal(t, "지역은 최대 10개까지 선택 가능합니다.", fe["regions"])

	form = PreferencesForm{TargetGender: "F", AgeMin: 18, AgeMax: 101}
	fe, ok = AsFieldErrors(v.Validate(form))
	require.True(t, ok)
	assert.Equal(t, "최소 연령은 19세 이상이어야 합니다.", fe["ageMin"])
	assert.Equal(t, "최대 연령은 100세를 초과할 수 없습니다.", fe["ageMax"])
}

func TestValidate_LikeAndPaymentIntent(t *testing.T) {
	v := fixedValidator()

	assert.NoError(t, v.Validate(LikeForm{ToUserID: "u-1", BatchWeek: "2025-W37"}))

	fe, ok := AsFieldErrors(v.Validate(LikeForm{BatchWeek: "2025-37"}))
	require.True(t, ok)
	assert.Equal(t, "사용자 ID가 필요합니다.", fe["toUserId"])
	assert.Equal(t, "올바른 주차 형식이 아닙니다.", fe["batchWeek"])

	fe, ok = AsFieldErrors(v.Validate(PaymentIntentForm{}))
	require.True(t, ok)
	assert.Equal(t, "매칭 ID가 필요합니다.", fe["matchId"])
}

func TestDecodeForm_Profile(t *testing.T) {
	values := url.Values{
		"nickname":       {" 민수 "},
		"gender":         {"M"},
		"birthYear":      {"1995"},
		"height":         {"178"},
		"photos":         {"https://a.example/1.jpg", "", "https://a.example/2.jpg"},
		"visible.age":    {"true"},
		"visible.height": {"false"},
		"csrf":           {"ignored"},
	}

	var form ProfileForm
	require.NoError(t, DecodeForm(&form, values))
	form.Normalize()

	assert.Equal(t, "민수", form.Nickname)
	require.NotNil(t, form.Height)
	assert.Equal(t, 178, *form.Height)
	assert.Equal(t, []string{"https://a.example/1.jpg", "https://a.example/2.jpg"}, form.Photos)
	assert.True(t, form.Visible.Age)
	assert.False(t, form.Visible.Height)

	p := form.Profile()
	assert.Equal(t, domain.GenderMale, p.Gender)
}

func TestDecodeForm_BadNumber(t *testing.T) {
	var form PreferencesForm
	err := DecodeForm(&form, url.Values{"ageMin": {"twenty"}})

	fe, ok := AsFieldErrors(err)
	require.True(t, ok)
	assert.Contains(t, fe, "ageMin")
}

func TestPreferencesForm_Normalize(t *testing.T) {
	form := PreferencesForm{Regions: []string{"서울, 경기", " ", "부산"}}
	form.Normalize()

	assert.Equal(t, []string{"서울", "경기", "부산"}, form.Regions)
	assert.Equal(t, []string{}, form.Preferences().Keywords)
	assert.Equal(t, "서울, 경기, 부산", Joined(form.Regions))
}
