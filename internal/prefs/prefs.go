// Package prefs stores small per-user presentation settings.
package prefs

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/examdeck/examdeck/internal/domain"
	"github.com/examdeck/examdeck/internal/errors"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
}

type Service struct {
	c Config
}

func NewService(c Config) *Service {
	return &Service{c: c}
}

// Get returns the user's preferences, falling back to the light theme when
// nothing has been stored yet.
func (s *Service) Get(ctx context.Context, userID string) (domain.Preferences, error) {
	theme, err := s.c.Redis.HGet(ctx, s.key(userID), "theme").Result()
	switch {
	case err == redis.Nil:
		return domain.Preferences{Theme: ThemeLight}, nil
	case err != nil:
		return domain.Preferences{}, errors.New(errors.CodePersistenceFailure,
			errors.WithMessagef("prefs: load preferences"),
			errors.WithCause(err))
	}
	return domain.Preferences{Theme: theme}, nil
}

func (s *Service) Set(ctx context.Context, userID string, p domain.Preferences) error {
	if p.Theme != ThemeLight && p.Theme != ThemeDark {
		return errors.New(errors.CodeInvalidConfiguration,
			errors.WithMessagef("prefs: unknown theme %q", p.Theme))
	}
	if err := s.c.Redis.HSet(ctx, s.key(userID), "theme", p.Theme).Err(); err != nil {
		return errors.New(errors.CodePersistenceFailure,
			errors.WithMessagef("prefs: save preferences"),
			errors.WithCause(err))
	}
	return nil
}

func (s *Service) key(userID string) string {
	return fmt.Sprintf("%s:user:%s:prefs", s.c.Prefix, userID)
}
