package web

import (
	"errors"
	"net/http"

	"github.com/Proton-105/sohaeng-web/internal/media"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/internal/validation"
)

const (
	profileEditPath = "/profile/edit"
	preferencesPath = "/profile/preferences"
	uploadField     = "upload"
)

type profileView struct {
	Form          validation.ProfileForm
	MaxBirthYear  int
	UploadEnabled bool
}

type preferencesView struct {
	Form validation.PreferencesForm
}

func (s *Server) profileEdit(w http.ResponseWriter, r *http.Request) {
	me, err := s.Account.Me(r.Context(), viewer(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.renderProfile(w, r, http.StatusOK, validation.ProfileFormFrom(me.Profile), nil)
}

func (s *Server) renderProfile(w http.ResponseWriter, r *http.Request, status int, form validation.ProfileForm, fieldErrs validation.FieldErrors) {
	p := s.page(r, "profile.edit_title", profileView{
		Form:          form,
		MaxBirthYear:  s.Validate.MaxBirthYear(),
		UploadEnabled: s.Photos.Enabled(),
	})
	p.Errors = fieldErrs
	s.render(w, r, status, "profile_edit", p)
}

// profileSave decodes the form, uploads new photos, then validates and saves. Field errors re-render the form.
func (s *Server) profileSave(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r.Context())

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.renderProfile(w, r, http.StatusBadRequest, validation.ProfileForm{}, validation.FieldErrors{"form": "입력값을 확인해주세요."})
		return
	}

	var form validation.ProfileForm
	if err := validation.DecodeForm(&form, r.PostForm); err != nil {
		fieldErrs, _ := validation.AsFieldErrors(err)
		s.renderProfile(w, r, http.StatusUnprocessableEntity, form, fieldErrs)
		return
	}

	if r.MultipartForm != nil && s.Photos.Enabled() {
		if files := r.MultipartForm.File[uploadField]; len(files) > 0 {
			if len(form.Photos)+len(files) > validation.MaxPhotos {
				s.renderProfile(w, r, http.StatusUnprocessableEntity, form, validation.FieldErrors{"photos": "사진은 최대 6장까지 업로드 가능합니다."})
				return
			}
			urls, err := s.Photos.UploadAll(r.Context(), sess.UserID, files)
			form.Photos = append(form.Photos, urls...)
			if err != nil {
				s.renderProfile(w, r, http.StatusUnprocessableEntity, form, validation.FieldErrors{"photos": s.photoError(r, err)})
				return
			}
		}
	}

	if _, err := s.Account.UpdateProfile(r.Context(), sess, form); err != nil {
		if fieldErrs, ok := validation.AsFieldErrors(err); ok {
			s.renderProfile(w, r, http.StatusUnprocessableEntity, form, fieldErrs)
			return
		}
		s.failBack(w, r, profileEditPath, err)
		return
	}

	s.back(w, r, profileEditPath, notice.Success("profile.saved"))
}

func (s *Server) preferencesEdit(w http.ResponseWriter, r *http.Request) {
	me, err := s.Account.Me(r.Context(), viewer(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.renderPreferences(w, r, http.StatusOK, validation.PreferencesFormFrom(me.Preferences), nil)
}

func (s *Server) renderPreferences(w http.ResponseWriter, r *http.Request, status int, form validation.PreferencesForm, fieldErrs validation.FieldErrors) {
	p := s.page(r, "preferences.title", preferencesView{Form: form})
	p.Errors = fieldErrs
	s.render(w, r, status, "preferences", p)
}

func (s *Server) preferencesSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPreferences(w, r, http.StatusBadRequest, validation.PreferencesForm{}, validation.FieldErrors{"form": "입력값을 확인해주세요."})
		return
	}

	var form validation.PreferencesForm
	if err := validation.DecodeForm(&form, r.PostForm); err != nil {
		fieldErrs, _ := validation.AsFieldErrors(err)
		s.renderPreferences(w, r, http.StatusUnprocessableEntity, form, fieldErrs)
		return
	}

	if _, err := s.Account.UpdatePreferences(r.Context(), viewer(r.Context()), form); err != nil {
		if fieldErrs, ok := validation.AsFieldErrors(err); ok {
			form.Normalize()
			s.renderPreferences(w, r, http.StatusUnprocessableEntity, form, fieldErrs)
			return
		}
		s.failBack(w, r, preferencesPath, err)
		return
	}

	s.back(w, r, preferencesPath, notice.Success("preferences.saved"))
}

func (s *Server) photoError(r *http.Request, err error) string {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return "사진은 10MB 이하만 올릴 수 있습니다."
	case errors.Is(err, media.ErrUnsupportedType):
		return "JPEG, PNG, WEBP, GIF 사진만 올릴 수 있습니다."
	}
	msg, _ := s.Errors.Handle(r.Context(), err)
	return msg
}
