package walletstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/validator"
	"github.com/gabapcia/walletsync/internal/tokencache"
	"github.com/gabapcia/walletsync/internal/wallet"
)

// ErrUnknownSetting is returned when updating a key Settings does not have.
var ErrUnknownSetting = errors.New("unknown setting")

// Settings are the user preferences.
type Settings struct {
	FiatCurrency                   string `json:"fiatCurrency" validate:"required,oneof=usd idr krw cad gbp eur jpy brl"`
	SendModal                      bool   `json:"sendModal"`
	AutoCameraOn                   bool   `json:"autoCameraOn"`
	HideMessagesFromUnknownSenders bool   `json:"hideMessagesFromUnknownSenders"`
	BalanceVisible                 bool   `json:"balanceVisible"`
}

func DefaultSettings() Settings {
	return Settings{
		FiatCurrency:                   "usd",
		SendModal:                      false,
		AutoCameraOn:                   true,
		HideMessagesFromUnknownSenders: false,
		BalanceVisible:                 true,
	}
}

type settingSetter func(*Settings, json.RawMessage) error

func stringSetting(field func(*Settings) *string) settingSetter {
	return func(s *Settings, raw json.RawMessage) error {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*field(s) = strings.ToLower(v)
		return nil
	}
}

func boolSetting(field func(*Settings) *bool) settingSetter {
	return func(s *Settings, raw json.RawMessage) error {
		return json.Unmarshal(raw, field(s))
	}
}

var settingSetters = map[string]settingSetter{
	"fiatCurrency":                   stringSetting(func(s *Settings) *string { return &s.FiatCurrency }),
	"sendModal":                      boolSetting(func(s *Settings) *bool { return &s.SendModal }),
	"autoCameraOn":                   boolSetting(func(s *Settings) *bool { return &s.AutoCameraOn }),
	"hideMessagesFromUnknownSenders": boolSetting(func(s *Settings) *bool { return &s.HideMessagesFromUnknownSenders }),
	"balanceVisible":                 boolSetting(func(s *Settings) *bool { return &s.BalanceVisible }),
}

// migrateSettings rebuilds settings from an older or malformed record: every
// recognised key that still decodes is kept and the rest fall back to the
// defaults.
func migrateSettings(raw map[string]json.RawMessage) Settings {
	settings := DefaultSettings()
	for key, value := range raw {
		setter, ok := settingSetters[key]
		if !ok {
			continue
		}

		candidate := settings
		if err := setter(&candidate, value); err == nil && validator.Validate(candidate) == nil {
			settings = candidate
		}
	}
	return settings
}

// Settings loads the user settings. An absent record is replaced by the
// defaults; an invalid one is migrated field by field. Either way the result
// is persisted.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings(ctx)
}

func (s *Store) settings(ctx context.Context) (Settings, error) {
	var settings Settings
	found, err := s.getRecord(ctx, KeySettings, &settings)
	switch {
	case errors.Is(err, wallet.ErrStoreUnavailable):
		return DefaultSettings(), err
	case !found:
		settings = DefaultSettings()
	case err == nil && validator.Validate(settings) == nil:
		return settings, nil
	default:
		settings = s.migrateSettingsRecord(ctx)
	}

	return settings, s.setRecord(ctx, KeySettings, settings)
}

func (s *Store) migrateSettingsRecord(ctx context.Context) Settings {
	var raw map[string]json.RawMessage
	if _, err := s.getRecord(ctx, KeySettings, &raw); err != nil {
		logger.Warn(ctx, "settings record replaced by defaults", "error", err)
		return DefaultSettings()
	}

	logger.Warn(ctx, "settings record migrated")
	return migrateSettings(raw)
}

// UpdateSettings sets key to value and persists the result. value must have
// the JSON type of the setting.
func (s *Store) UpdateSettings(ctx context.Context, key string, value any) (Settings, error) {
	setter, ok := settingSetters[key]
	if !ok {
		return Settings{}, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return Settings{}, fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.settings(ctx)
	if err != nil {
		return Settings{}, err
	}

	updated := current
	if err := setter(&updated, raw); err != nil {
		return Settings{}, fmt.Errorf("%w: %s: %w", wallet.ErrInvalidRecord, key, err)
	}
	if err := validator.Validate(updated); err != nil {
		return Settings{}, fmt.Errorf("%w: %s: %w", wallet.ErrInvalidRecord, key, err)
	}

	if err := s.setRecord(ctx, KeySettings, updated); err != nil {
		return current, err
	}
	return updated, nil
}

// Contact is an entry of the address book.
type Contact struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
}

type contactList struct {
	Contacts []Contact `validate:"dive"`
}

// ContactList loads the address book. An absent or invalid record is replaced
// by an empty list, which is persisted.
func (s *Store) ContactList(ctx context.Context) ([]Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var contacts []Contact
	found, err := s.getRecord(ctx, KeyContactList, &contacts)
	switch {
	case errors.Is(err, wallet.ErrStoreUnavailable):
		return []Contact{}, err
	case found && err == nil && validator.Validate(contactList{Contacts: contacts}) == nil:
		return contacts, nil
	case found:
		logger.Warn(ctx, "contact list record replaced by default", "error", err)
	}

	return []Contact{}, s.setRecord(ctx, KeyContactList, []Contact{})
}

// UpdateContactList validates and persists contacts.
func (s *Store) UpdateContactList(ctx context.Context, contacts []Contact) error {
	if err := validator.Validate(contactList{Contacts: contacts}); err != nil {
		return fmt.Errorf("%w: %w", wallet.ErrInvalidRecord, err)
	}
	if contacts == nil {
		contacts = []Contact{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setRecord(ctx, KeyContactList, contacts)
}

// TokenCache loads the persisted token cache. An absent or invalid record is
// replaced by an empty cache, which is persisted.
func (s *Store) TokenCache(ctx context.Context) (wallet.TokenCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec tokenCacheRecord
	found, err := s.getRecord(ctx, KeyTokenCache, &rec)
	if errors.Is(err, wallet.ErrStoreUnavailable) {
		return wallet.TokenCache{}, err
	}

	if found && err == nil {
		cache, err := rec.hydrate()
		if err == nil {
			return cache, nil
		}
		logger.Warn(ctx, "token cache record replaced by default", "error", err)
	} else if found {
		logger.Warn(ctx, "token cache record replaced by default", "error", err)
	}

	return wallet.TokenCache{}, s.setRecord(ctx, KeyTokenCache, tokenCacheRecord{})
}

var _ tokencache.Persister = (*Store)(nil)

// SaveTokenCache persists cache.
func (s *Store) SaveTokenCache(ctx context.Context, cache wallet.TokenCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setRecord(ctx, KeyTokenCache, newTokenCacheRecord(cache))
}
