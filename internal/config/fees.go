package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FeeConfig is the hot-reloadable fee policy.
type FeeConfig struct {
	Currency           string        `mapstructure:"currency"`
	ReminderWindowDays int           `mapstructure:"reminderWindowDays"`
	ReceiptTTL         time.Duration `mapstructure:"receiptTTL"`
	AgingBuckets       []AgingBucket `mapstructure:"agingBuckets"`
}

// AgingBucket groups overdue installments by days past due. A nil MaxDays
// means the bucket is open ended.
type AgingBucket struct {
	Label   string `mapstructure:"label"`
	MinDays int    `mapstructure:"minDays"`
	MaxDays *int   `mapstructure:"maxDays"`
}

func (b AgingBucket) Contains(days int) bool {
	if days < b.MinDays {
		return false
	}
	return b.MaxDays == nil || days <= *b.MaxDays
}

// BucketFor returns the label of the first bucket containing days, or "" when
// none matches.
func (c FeeConfig) BucketFor(days int) string {
	for _, b := range c.AgingBuckets {
		if b.Contains(days) {
			return b.Label
		}
	}
	return ""
}

func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		Currency:           "INR",
		ReminderWindowDays: 3,
		ReceiptTTL:         30 * time.Minute,
		AgingBuckets: []AgingBucket{
			{Label: "1-30", MinDays: 1, MaxDays: intPtr(30)},
			{Label: "31-60", MinDays: 31, MaxDays: intPtr(60)},
			{Label: "60+", MinDays: 61, MaxDays: nil},
		},
	}
}

func intPtr(v int) *int { return &v }

type FeeConfigHolder struct {
	current atomic.Value // holds FeeConfig
}

func NewFeeConfigHolder(log *zap.Logger) (*FeeConfigHolder, error) {
	return loadFeeConfig(log, "/var/lib/feeledger/config", "/etc/feeledger", ".")
}

// NewStaticFeeConfigHolder wraps a fixed config without file watching.
func NewStaticFeeConfigHolder(cfg FeeConfig) *FeeConfigHolder {
	holder := &FeeConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func loadFeeConfig(log *zap.Logger, paths ...string) (*FeeConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.fees")

	v := viper.New()
	v.SetConfigName("fees")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("FEELEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFeeConfig()
	v.SetDefault("fees.currency", defaults.Currency)
	v.SetDefault("fees.reminderWindowDays", defaults.ReminderWindowDays)
	v.SetDefault("fees.receiptTTL", defaults.ReceiptTTL)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	cfg, err := decodeFeeConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticFeeConfigHolder(cfg)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeFeeConfig(v)
		if err != nil {
			log.Warn("fee config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("fee config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func decodeFeeConfig(v *viper.Viper) (FeeConfig, error) {
	var cfg FeeConfig
	if err := v.UnmarshalKey("fees", &cfg); err != nil {
		return FeeConfig{}, err
	}
	defaults := DefaultFeeConfig()
	if len(cfg.AgingBuckets) == 0 {
		cfg.AgingBuckets = defaults.AgingBuckets
	}
	if cfg.ReceiptTTL == 0 {
		cfg.ReceiptTTL = defaults.ReceiptTTL
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = defaults.Currency
	}
	if !v.IsSet("fees.reminderWindowDays") {
		cfg.ReminderWindowDays = defaults.ReminderWindowDays
	}
	if err := validateFeeConfig(cfg); err != nil {
		return FeeConfig{}, err
	}
	return cfg, nil
}

func (h *FeeConfigHolder) Get() FeeConfig {
	return h.current.Load().(FeeConfig)
}

func validateFeeConfig(cfg FeeConfig) error {
	if cfg.ReminderWindowDays < 0 {
		return errors.New("fees.reminderWindowDays cannot be negative")
	}
	if cfg.ReceiptTTL <= 0 {
		return errors.New("fees.receiptTTL must be positive")
	}
	prev := -1
	for i, b := range cfg.AgingBuckets {
		if strings.TrimSpace(b.Label) == "" {
			return fmt.Errorf("fees.agingBuckets[%d].label is required", i)
		}
		if b.MinDays <= prev {
			return fmt.Errorf("fees.agingBuckets[%d] overlaps previous bucket", i)
		}
		if b.MaxDays != nil {
			if *b.MaxDays < b.MinDays {
				return fmt.Errorf("fees.agingBuckets[%d].maxDays is below minDays", i)
			}
			prev = *b.MaxDays
		} else if i != len(cfg.AgingBuckets)-1 {
			return fmt.Errorf("fees.agingBuckets[%d] is open ended but not last", i)
		}
	}
	return nil
}
