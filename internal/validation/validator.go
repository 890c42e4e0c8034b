// Package validation checks user forms before any backend call is made.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Proton-105/sohaeng-web/internal/week"
)

const (
	MinBirthYear = 1950
	// MinAge is the youngest age allowed to sign up.
	MinAge = 19
)

// FieldErrors maps a json field name to a user facing message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fmt.Sprintf("field '%s': %s", f, e[f]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// AsFieldErrors extracts FieldErrors from err.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Validator wraps go-playground/validator with the form rules of the service.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func New() *Validator {
	return NewWithClock(time.Now)
}

// NewWithClock fixes the clock used for the birth year rule.
func NewWithClock(now func() time.Time) *Validator {
	v := &Validator{validate: validator.New(), now: now}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister := func(tag string, fn validator.Func) {
		if err := v.validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %q: %v", tag, err))
		}
	}
	mustRegister("birthyear", v.validBirthYear)
	mustRegister("weeklabel", func(fl validator.FieldLevel) bool {
		return week.Valid(fl.Field().String())
	})

	return v
}

// MaxBirthYear is the latest birth year that is old enough this year.
func (v *Validator) MaxBirthYear() int {
	return v.now().Year() - MinAge
}

func (v *Validator) validBirthYear(fl validator.FieldLevel) bool {
	year := int(fl.Field().Int())
	return year >= MinBirthYear && year <= v.MaxBirthYear()
}

// Validate checks a form. Failures come back as FieldErrors.
func (v *Validator) Validate(form any) error {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		field := fieldName(fe)
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = v.message(field, fe)
	}

	return out
}

// fieldName drops the struct prefix and any slice index: "ProfileForm.photos[3]" becomes "photos".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

func (v *Validator) message(field string, fe validator.FieldError) string {
	if msg, ok := messages[field+"."+fe.Tag()]; ok {
		return msg
	}
	if fe.Tag() == "birthyear" {
		if n, ok := fe.Value().(int); ok && n < MinBirthYear {
			return "출생연도가 너무 이릅니다."
		}
		return "만 19세 이상만 가입 가능합니다."
	}

	switch fe.Tag() {
	case "required":
		return "필수 항목입니다."
	case "min":
		if isCountable(fe.Kind()) {
			return fmt.Sprintf("최소 %s자 이상이어야 합니다.", fe.Param())
		}
		return fmt.Sprintf("%s 이상이어야 합니다.", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("최대 %s개까지 가능합니다.", fe.Param())
		}
		if isCountable(fe.Kind()) {
			return fmt.Sprintf("%s자를 초과할 수 없습니다.", fe.Param())
		}
		return fmt.Sprintf("%s 이하여야 합니다.", fe.Param())
	case "oneof":
		return fmt.Sprintf("다음 중 하나여야 합니다: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return "올바른 URL 형식이어야 합니다."
	default:
		return fmt.Sprintf("올바르지 않은 값입니다 (%s).", fe.Tag())
	}
}

func isCountable(k reflect.Kind) bool {
	return k == reflect.String || k == reflect.Slice || k == reflect.Map
}

var messages = map[string]string{
	"nickname.min":        "닉네임은 최소 2자 이상이어야 합니다.",
	"nickname.max":        "닉네임은 20자를 초과할 수 없습니다.",
	"gender.oneof":        "성별을 선택해주세요.",
	"intro.max":           "자기소개는 500자를 초과할 수 없습니다.",
	"photos.max":          "사진은 최대 6장까지 업로드 가능합니다.",
	"photos.url":          "올바른 URL 형식이어야 합니다.",
	"targetGender.oneof":  "선호 성별을 선택해주세요.",
	"ageMin.min":          "최소 연령은 19세 이상이어야 합니다.",
	"ageMax.max":          "최대 연령은 100세를 초과할 수 없습니다.",
	"ageMax.gtefield":     "최소 연령은 최대 연령보다 작아야 합니다.",
	"regions.max":         "지역은 최대 10개까지 선택 가능합니다.",
	"keywords.max":        "키워드는 최대 20개까지 선택 가능합니다.",
	"toUserId.required":   "사용자 ID가 필요합니다.",
	"batchWeek.weeklabel": "올바른 주차 형식이 아닙니다.",
	"matchId.required":    "매칭 ID가 필요합니다.",
}
