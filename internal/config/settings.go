package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Settings are the tunable product rules. They can change at runtime when
// the settings file is edited.
type Settings struct {
	DailyQuota      int           `mapstructure:"dailyQuota"`
	HistoryLimit    int           `mapstructure:"historyLimit"`
	AutosaveDelay   time.Duration `mapstructure:"autosaveDelay"`
	DueInDays       int           `mapstructure:"dueInDays"`
	LogoMaxBytes    int           `mapstructure:"logoMaxBytes"`
	DefaultCurrency string        `mapstructure:"defaultCurrency"`
	DefaultTemplate string        `mapstructure:"defaultTemplate"`
	NumberTemplate  string        `mapstructure:"numberTemplate"`
	FooterCredit    string        `mapstructure:"footerCredit"`
}

func DefaultSettings() Settings {
	return Settings{
		DailyQuota:      3,
		HistoryLimit:    50,
		AutosaveDelay:   time.Second,
		DueInDays:       30,
		LogoMaxBytes:    500 * 1024,
		DefaultCurrency: "USD",
		DefaultTemplate: "classic",
		NumberTemplate:  "INV-{YYYY}{MM}-{SEQ3}",
		FooterCredit:    "Created with QuickInvoice, the free invoice generator",
	}
}

type SettingsHolder struct {
	current atomic.Value // holds Settings
}

// NewStaticSettings returns a holder that never reloads.
func NewStaticSettings(s Settings) *SettingsHolder {
	holder := &SettingsHolder{}
	holder.current.Store(s)
	return holder
}

func NewSettingsHolder(cfg Config, log *zap.Logger) (*SettingsHolder, error) {
	v := viper.New()

	if cfg.SettingsPath != "" {
		v.SetConfigFile(cfg.SettingsPath)
	} else {
		v.SetConfigName("quickinvoice")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/quickinvoice")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("QUICKINVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSettings()
	v.SetDefault("settings.dailyQuota", defaults.DailyQuota)
	v.SetDefault("settings.historyLimit", defaults.HistoryLimit)
	v.SetDefault("settings.autosaveDelay", defaults.AutosaveDelay)
	v.SetDefault("settings.dueInDays", defaults.DueInDays)
	v.SetDefault("settings.logoMaxBytes", defaults.LogoMaxBytes)
	v.SetDefault("settings.defaultCurrency", defaults.DefaultCurrency)
	v.SetDefault("settings.defaultTemplate", defaults.DefaultTemplate)
	v.SetDefault("settings.numberTemplate", defaults.NumberTemplate)
	v.SetDefault("settings.footerCredit", defaults.FooterCredit)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	s, err := decodeSettings(v)
	if err != nil {
		return nil, err
	}
	if err := validateSettings(s); err != nil {
		return nil, err
	}

	holder := NewStaticSettings(s)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeSettings(v)
		if err != nil {
			log.Warn("settings reload failed", zap.Error(err))
			return
		}
		if err := validateSettings(updated); err != nil {
			log.Warn("invalid settings ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("settings reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SettingsHolder) Get() Settings {
	if h == nil {
		return DefaultSettings()
	}
	s, ok := h.current.Load().(Settings)
	if !ok {
		return DefaultSettings()
	}
	return s
}

// decodeSettings goes through Unmarshal rather than UnmarshalKey so that
// defaults are merged into a partially specified settings block.
func decodeSettings(v *viper.Viper) (Settings, error) {
	var wrapper struct {
		Settings Settings `mapstructure:"settings"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return Settings{}, err
	}
	return wrapper.Settings, nil
}

func validateSettings(s Settings) error {
	if s.DailyQuota < 0 {
		return errors.New("settings.dailyQuota cannot be negative")
	}
	if s.HistoryLimit <= 0 {
		return errors.New("settings.historyLimit must be positive")
	}
	if s.AutosaveDelay <= 0 {
		return errors.New("settings.autosaveDelay must be positive")
	}
	if s.LogoMaxBytes <= 0 {
		return errors.New("settings.logoMaxBytes must be positive")
	}
	if strings.TrimSpace(s.DefaultCurrency) == "" {
		return errors.New("settings.defaultCurrency cannot be empty")
	}
	if strings.TrimSpace(s.NumberTemplate) == "" {
		return errors.New("settings.numberTemplate cannot be empty")
	}
	return nil
}
