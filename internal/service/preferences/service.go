package preferences

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliskhannn/image-converter/internal/model"
	prefrepo "github.com/aliskhannn/image-converter/internal/repository/preferences"
)

// ErrInvalidPreferences wraps validation failures of submitted preferences.
var ErrInvalidPreferences = errors.New("invalid preferences")

// repository defines persistence for client preferences.
type repository interface {
	Get(ctx context.Context, clientID string) (model.Preferences, error)
	Save(ctx context.Context, p model.Preferences) (model.Preferences, error)
	Delete(ctx context.Context, clientID string) error
}

// Service reads and writes client preferences, falling back to defaults.
type Service struct {
	repo repository
}

// NewService creates a new Service backed by repo.
func NewService(repo repository) *Service {
	return &Service{repo: repo}
}

// Get returns the client's preferences, or the defaults when none are saved.
func (s *Service) Get(ctx context.Context, clientID string) (model.Preferences, error) {
	p, err := s.repo.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, prefrepo.ErrPreferencesNotFound) {
			return model.DefaultPreferences(clientID), nil
		}
		return model.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// Save validates and stores the client's preferences.
func (s *Service) Save(ctx context.Context, p model.Preferences) (model.Preferences, error) {
	if p.ClientID == "" {
		return model.Preferences{}, fmt.Errorf("%w: client id is required", ErrInvalidPreferences)
	}
	if err := p.Validate(); err != nil {
		return model.Preferences{}, fmt.Errorf("%w: %v", ErrInvalidPreferences, err)
	}

	saved, err := s.repo.Save(ctx, p)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return saved, nil
}

// Reset forgets the client's preferences. Resetting defaults is a no-op.
func (s *Service) Reset(ctx context.Context, clientID string) error {
	if err := s.repo.Delete(ctx, clientID); err != nil && !errors.Is(err, prefrepo.ErrPreferencesNotFound) {
		return fmt.Errorf("reset preferences: %w", err)
	}
	return nil
}
