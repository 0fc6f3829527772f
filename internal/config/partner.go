package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EventTrigger binds a credential trigger flag to the partner's event codes.
type EventTrigger struct {
	Name     string `mapstructure:"name"`
	Code     string `mapstructure:"code"`
	FullCode string `mapstructure:"fullCode"`
}

// PartnerConfig holds protocol tunables that operators may change without a redeploy.
type PartnerConfig struct {
	Triggers          []EventTrigger    `mapstructure:"triggers"`
	StatusActions     map[string]string `mapstructure:"statusActions"`
	AverageSpeedKmh   float64           `mapstructure:"averageSpeedKmh"`
	TokenSafetyMargin int               `mapstructure:"tokenSafetyMarginSeconds"`
}

const (
	TriggerConfirmed     = "confirmed"
	TriggerReadyToPickup = "ready_to_pickup"
	TriggerDispatched    = "dispatched"
)

func DefaultPartnerConfig() PartnerConfig {
	return PartnerConfig{
		Triggers: []EventTrigger{
			{Name: TriggerConfirmed, Code: "CFM", FullCode: "CONFIRMED"},
			{Name: TriggerReadyToPickup, Code: "RTP", FullCode: "READY_TO_PICKUP"},
			{Name: TriggerDispatched, Code: "DSP", FullCode: "DISPATCHED"},
		},
		StatusActions: map[string]string{
			"accepted":               "assignDriver",
			"arrived_at_pickup":      "arrivedAtOrigin",
			"picked_up":              "dispatch",
			"arrived_at_destination": "arrivedAtDestination",
			"completed":              "delivered",
		},
		AverageSpeedKmh:   30,
		TokenSafetyMargin: 60,
	}
}

// Trigger returns the trigger registered under name.
func (c PartnerConfig) Trigger(name string) (EventTrigger, bool) {
	for _, t := range c.Triggers {
		if t.Name == name {
			return t, true
		}
	}
	return EventTrigger{}, false
}

type PartnerConfigHolder struct {
	current atomic.Value // holds PartnerConfig
}

// NewStaticPartnerConfigHolder wraps a fixed config; used by tests and tools.
func NewStaticPartnerConfigHolder(cfg PartnerConfig) *PartnerConfigHolder {
	holder := &PartnerConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPartnerConfigHolder(log *zap.Logger) (*PartnerConfigHolder, error) {
	log = log.Named("config.partner")
	v := viper.New()

	v.SetConfigName("partner")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/orderbridge")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORDERBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPartnerConfig()
	v.SetDefault("partner.triggers", defaults.Triggers)
	v.SetDefault("partner.statusActions", defaults.StatusActions)
	v.SetDefault("partner.averageSpeedKmh", defaults.AverageSpeedKmh)
	v.SetDefault("partner.tokenSafetyMarginSeconds", defaults.TokenSafetyMargin)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := unmarshalPartner(v)
	if err != nil {
		return nil, err
	}

	holder := &PartnerConfigHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := unmarshalPartner(v)
			if err != nil {
				log.Warn("partner config reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("partner config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *PartnerConfigHolder) Get() PartnerConfig {
	return h.current.Load().(PartnerConfig)
}

func unmarshalPartner(v *viper.Viper) (PartnerConfig, error) {
	var cfg PartnerConfig
	if err := v.UnmarshalKey("partner", &cfg); err != nil {
		return PartnerConfig{}, err
	}
	if err := validatePartnerConfig(cfg); err != nil {
		return PartnerConfig{}, err
	}
	return cfg, nil
}

func validatePartnerConfig(cfg PartnerConfig) error {
	if len(cfg.Triggers) == 0 {
		return errors.New("partner.triggers cannot be empty")
	}
	for _, t := range cfg.Triggers {
		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Code) == "" {
			return errors.New("partner.triggers entries need name and code")
		}
	}
	if cfg.AverageSpeedKmh <= 0 {
		return errors.New("partner.averageSpeedKmh must be positive")
	}
	if cfg.TokenSafetyMargin < 0 {
		return errors.New("partner.tokenSafetyMarginSeconds cannot be negative")
	}
	return nil
}
