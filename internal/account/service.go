// Package account covers the viewer's own user record, profile and preferences.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/sohaeng-web/internal/api"
	"github.com/Proton-105/sohaeng-web/internal/domain"
	"github.com/Proton-105/sohaeng-web/internal/query"
	"github.com/Proton-105/sohaeng-web/internal/validation"
)

const (
	ResourceMe              = "me"
	ResourceRecommendations = "recommendations"
)

// Backend is the subset of the users API the service needs.
type Backend interface {
	Me(ctx context.Context, creds api.Credentials) (*domain.Me, error)
	UpdateProfile(ctx context.Context, creds api.Credentials, profile domain.Profile) (*domain.Profile, error)
	UpdatePreferences(ctx context.Context, creds api.Credentials, prefs domain.Preferences) (*domain.Preferences, error)
}

// Viewer identifies the signed-in user and carries their backend token.
type Viewer interface {
	api.Credentials
	ID() string
}

// Service validates forms, calls the backend and keeps the cached "me" fresh.
type Service struct {
	backend   Backend
	cache     *query.Cache
	validator *validation.Validator
	log       *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(backend Backend, cache *query.Cache, validator *validation.Validator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if validator == nil {
		validator = validation.New()
	}
	return &Service{backend: backend, cache: cache, validator: validator, log: log}
}

// Me returns the viewer's account, served from cache while fresh.
func (s *Service) Me(ctx context.Context, v Viewer) (*domain.Me, error) {
	me, err := query.Fetch(ctx, s.cache, query.Key{Scope: v.ID(), Resource: ResourceMe}, func(ctx context.Context) (*domain.Me, error) {
		return s.backend.Me(ctx, v)
	})
	if err != nil {
		s.logError(ctx, "me", v.ID(), err)
		return nil, err
	}

	return me, nil
}

// UpdateProfile validates and saves the profile form. Validation failures are returned as validation.FieldErrors
// and no call is made.
func (s *Service) UpdateProfile(ctx context.Context, v Viewer, form validation.ProfileForm) (*domain.Profile, error) {
	form.Normalize()
	if err := s.validator.Validate(form); err != nil {
		return nil, err
	}

	profile, err := s.backend.UpdateProfile(ctx, v, form.Profile())
	if err != nil {
		s.logError(ctx, "update_profile", v.ID(), err)
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.invalidate(ctx, v.ID(), ResourceMe)
	return profile, nil
}

// UpdatePreferences validates and saves the preferences form.
func (s *Service) UpdatePreferences(ctx context.Context, v Viewer, form validation.PreferencesForm) (*domain.Preferences, error) {
	form.Normalize()
	if err := s.validator.Validate(form); err != nil {
		return nil, err
	}

	prefs, err := s.backend.UpdatePreferences(ctx, v, form.Preferences())
	if err != nil {
		s.logError(ctx, "update_preferences", v.ID(), err)
		return nil, fmt.Errorf("update preferences: %w", err)
	}

	// the next batch is computed from the new preferences
	s.invalidate(ctx, v.ID(), ResourceMe, ResourceRecommendations)
	return prefs, nil
}

func (s *Service) invalidate(ctx context.Context, userID string, resources ...string) {
	if s.cache == nil {
		return
	}

	var errs []error
	for _, r := range resources {
		if err := s.cache.Invalidate(ctx, userID, r); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logError(ctx, "invalidate", userID, err)
	}
}

func (s *Service) logError(ctx context.Context, operation, userID string, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.ErrorContext(ctx, "account service operation failed",
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Any("error", err),
	)
}
