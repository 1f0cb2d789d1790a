package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// FraudModule provides the hot-reloadable fraud rule configuration.
var FraudModule = fx.Provide(NewFraudConfigHolder)

// FraudThresholds map a risk score onto a risk level. Callers must keep
// High >= Medium >= Low; the holder validates ordering on load.
type FraudThresholds struct {
	High   int `mapstructure:"high"`
	Medium int `mapstructure:"medium"`
	Low    int `mapstructure:"low"`
}

// FraudRules are the tunable knobs of the indicator battery. Monetary
// values are minor units (cents).
type FraudRules struct {
	HighAmountThreshold     int64 `mapstructure:"highAmountThreshold"`
	LargeAmountThreshold    int64 `mapstructure:"largeAmountThreshold"`
	RoundAmountUnit         int64 `mapstructure:"roundAmountUnit"`
	MaxPaymentAttempts      int   `mapstructure:"maxPaymentAttempts"`
	MinTransactionIntervalM int   `mapstructure:"minTransactionIntervalMinutes"`
	BusinessHoursStart      int   `mapstructure:"businessHoursStart"`
	BusinessHoursEnd        int   `mapstructure:"businessHoursEnd"`
	VelocityWindowMinutes   int   `mapstructure:"velocityWindowMinutes"`
	MaxVelocityAttempts     int   `mapstructure:"maxVelocityAttempts"`
}

// FraudConfig is the full scoring configuration snapshot handed to the
// fraud service. Every field has a default; partial files are fine.
type FraudConfig struct {
	Thresholds        FraudThresholds   `mapstructure:"thresholds"`
	IndicatorWeights  map[string]int    `mapstructure:"indicatorWeights"`
	RiskyEmailDomains []string          `mapstructure:"riskyEmailDomains"`
	Rules             FraudRules        `mapstructure:"rules"`
	Recommendations   map[string]string `mapstructure:"recommendations"`
}

func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		Thresholds: FraudThresholds{High: 70, Medium: 50, Low: 30},
		IndicatorWeights: map[string]int{
			"high_amount":           20,
			"multiple_attempts":     15,
			"unusual_location":      25,
			"address_mismatch":      10,
			"card_country_mismatch": 20,
			"rapid_transactions":    15,
			"unusual_time":          5,
			"ip_proxy_detected":     30,
			"device_mismatch":       10,
			"risky_email_domain":    15,
			"velocity_exceeded":     20,
			"large_amount":          15,
			"round_amount":          5,
			"poor_ip_reputation":    20,
			"prior_chargeback":      30,
		},
		RiskyEmailDomains: []string{
			"mailinator.com",
			"guerrillamail.com",
			"10minutemail.com",
			"tempmail.com",
			"trashmail.com",
			"yopmail.com",
			"sharklasers.com",
			"getnada.com",
		},
		Rules: FraudRules{
			HighAmountThreshold:     100_000,
			LargeAmountThreshold:    1_000_000,
			RoundAmountUnit:         1_000,
			MaxPaymentAttempts:      3,
			MinTransactionIntervalM: 5,
			BusinessHoursStart:      6,
			BusinessHoursEnd:        23,
			VelocityWindowMinutes:   15,
			MaxVelocityAttempts:     5,
		},
		Recommendations: map[string]string{
			"high":    "block_transaction",
			"medium":  "additional_verification",
			"low":     "flag_for_review",
			"minimal": "proceed",
		},
	}
}

// FraudConfigHolder serves the current fraud configuration and reloads
// it when the underlying file changes. Invalid updates are ignored.
type FraudConfigHolder struct {
	current atomic.Value // holds FraudConfig
}

func NewFraudConfigHolder() (*FraudConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("fraud")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/paycore/config")
	v.AddConfigPath("/etc/paycore")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setFraudDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg, err := unmarshalFraudConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &FraudConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalFraudConfig(v)
		if err != nil {
			log.Printf("[fraud-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[fraud-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticFraudConfigHolder wraps a fixed configuration, used by tests.
func NewStaticFraudConfigHolder(cfg FraudConfig) *FraudConfigHolder {
	holder := &FraudConfigHolder{}
	holder.current.Store(mergeFraudDefaults(cfg))
	return holder
}

func (h *FraudConfigHolder) Get() FraudConfig {
	return h.current.Load().(FraudConfig)
}

// setFraudDefaults registers defaults at leaf granularity so a partial
// file only overrides the keys it actually names.
func setFraudDefaults(v *viper.Viper) {
	d := DefaultFraudConfig()

	v.SetDefault("fraud.thresholds.high", d.Thresholds.High)
	v.SetDefault("fraud.thresholds.medium", d.Thresholds.Medium)
	v.SetDefault("fraud.thresholds.low", d.Thresholds.Low)

	for name, weight := range d.IndicatorWeights {
		v.SetDefault("fraud.indicatorWeights."+name, weight)
	}
	v.SetDefault("fraud.riskyEmailDomains", d.RiskyEmailDomains)

	v.SetDefault("fraud.rules.highAmountThreshold", d.Rules.HighAmountThreshold)
	v.SetDefault("fraud.rules.largeAmountThreshold", d.Rules.LargeAmountThreshold)
	v.SetDefault("fraud.rules.roundAmountUnit", d.Rules.RoundAmountUnit)
	v.SetDefault("fraud.rules.maxPaymentAttempts", d.Rules.MaxPaymentAttempts)
	v.SetDefault("fraud.rules.minTransactionIntervalMinutes", d.Rules.MinTransactionIntervalM)
	v.SetDefault("fraud.rules.businessHoursStart", d.Rules.BusinessHoursStart)
	v.SetDefault("fraud.rules.businessHoursEnd", d.Rules.BusinessHoursEnd)
	v.SetDefault("fraud.rules.velocityWindowMinutes", d.Rules.VelocityWindowMinutes)
	v.SetDefault("fraud.rules.maxVelocityAttempts", d.Rules.MaxVelocityAttempts)

	for level, action := range d.Recommendations {
		v.SetDefault("fraud.recommendations."+level, action)
	}
}

func unmarshalFraudConfig(v *viper.Viper) (FraudConfig, error) {
	var cfg FraudConfig
	if err := v.UnmarshalKey("fraud", &cfg); err != nil {
		return FraudConfig{}, err
	}
	cfg = mergeFraudDefaults(cfg)
	if err := validateFraudConfig(cfg); err != nil {
		return FraudConfig{}, err
	}
	return cfg, nil
}

// mergeFraudDefaults fills every unset field from the defaults. A zero
// value means unset; fields where zero is meaningful keep their viper
// leaf default instead of relying on this merge.
func mergeFraudDefaults(cfg FraudConfig) FraudConfig {
	defaults := DefaultFraudConfig()

	if cfg.Thresholds.High == 0 {
		cfg.Thresholds.High = defaults.Thresholds.High
	}
	if cfg.Thresholds.Medium == 0 {
		cfg.Thresholds.Medium = defaults.Thresholds.Medium
	}
	if cfg.Thresholds.Low == 0 {
		cfg.Thresholds.Low = defaults.Thresholds.Low
	}

	if cfg.IndicatorWeights == nil {
		cfg.IndicatorWeights = map[string]int{}
	}
	for name, weight := range defaults.IndicatorWeights {
		if _, ok := cfg.IndicatorWeights[name]; !ok {
			cfg.IndicatorWeights[name] = weight
		}
	}
	if cfg.RiskyEmailDomains == nil {
		cfg.RiskyEmailDomains = defaults.RiskyEmailDomains
	}

	if cfg.Rules.HighAmountThreshold == 0 {
		cfg.Rules.HighAmountThreshold = defaults.Rules.HighAmountThreshold
	}
	if cfg.Rules.LargeAmountThreshold == 0 {
		cfg.Rules.LargeAmountThreshold = defaults.Rules.LargeAmountThreshold
	}
	if cfg.Rules.RoundAmountUnit == 0 {
		cfg.Rules.RoundAmountUnit = defaults.Rules.RoundAmountUnit
	}
	if cfg.Rules.MaxPaymentAttempts == 0 {
		cfg.Rules.MaxPaymentAttempts = defaults.Rules.MaxPaymentAttempts
	}
	if cfg.Rules.MinTransactionIntervalM == 0 {
		cfg.Rules.MinTransactionIntervalM = defaults.Rules.MinTransactionIntervalM
	}
	if cfg.Rules.BusinessHoursStart == 0 {
		cfg.Rules.BusinessHoursStart = defaults.Rules.BusinessHoursStart
	}
	if cfg.Rules.BusinessHoursEnd == 0 {
		cfg.Rules.BusinessHoursEnd = defaults.Rules.BusinessHoursEnd
	}
	if cfg.Rules.VelocityWindowMinutes == 0 {
		cfg.Rules.VelocityWindowMinutes = defaults.Rules.VelocityWindowMinutes
	}
	if cfg.Rules.MaxVelocityAttempts == 0 {
		cfg.Rules.MaxVelocityAttempts = defaults.Rules.MaxVelocityAttempts
	}

	if cfg.Recommendations == nil {
		cfg.Recommendations = map[string]string{}
	}
	for level, action := range defaults.Recommendations {
		if _, ok := cfg.Recommendations[level]; !ok {
			cfg.Recommendations[level] = action
		}
	}
	return cfg
}

func validateFraudConfig(cfg FraudConfig) error {
	t := cfg.Thresholds
	if t.High < t.Medium || t.Medium < t.Low {
		return errors.New("fraud.thresholds must satisfy high >= medium >= low")
	}
	if cfg.Rules.BusinessHoursStart < 0 || cfg.Rules.BusinessHoursEnd > 23 ||
		cfg.Rules.BusinessHoursStart > cfg.Rules.BusinessHoursEnd {
		return errors.New("fraud.rules business hours window is invalid")
	}
	return nil
}
