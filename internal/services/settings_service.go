package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"sierraspos/internal/domain"
	"sierraspos/internal/media"
	"sierraspos/internal/repos"
	"sierraspos/internal/validate"
)

type SettingsService struct {
	Settings *repos.SettingsRepo
	Media    *media.Store
}

func NewSettingsService(st *repos.SettingsRepo, m *media.Store) *SettingsService {
	return &SettingsService{Settings: st, Media: m}
}

func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	return s.Settings.All(ctx)
}

// Set validates and stores one key. Known keys get their value normalized.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	key, ok := validate.SettingKey(key)
	if !ok {
		return fmt.Errorf("setting key %q: %w", key, domain.ErrInvalidInput)
	}
	switch key {
	case repos.SettingBccEmails:
		if value, ok = validate.EmailList(value); !ok {
			return fmt.Errorf("bcc list: %w", domain.ErrInvalidInput)
		}
	case repos.SettingShowBalanceInReceipt:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			value = "1"
		default:
			value = "0"
		}
	}
	return s.Settings.Set(ctx, key, value)
}

// SetAsset stores a branding image (logo or favicon) and records its URL.
func (s *SettingsService) SetAsset(ctx context.Context, key, filename string, r io.Reader) (string, error) {
	if key != repos.SettingAppLogo && key != repos.SettingAppFavicon {
		return "", fmt.Errorf("asset key %q: %w", key, domain.ErrInvalidInput)
	}
	url, err := s.Media.SaveImage(strings.ReplaceAll(key, "_", "-"), filename, r)
	if err != nil {
		return "", err
	}
	return url, s.Settings.Set(ctx, key, url)
}
