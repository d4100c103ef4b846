package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadFeeConfigDefaultsWhenFileMissing(t *testing.T) {
	holder, err := loadFeeConfig(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 3, cfg.ReminderWindowDays)
	assert.Equal(t, 30*time.Minute, cfg.ReceiptTTL)
	assert.Len(t, cfg.AgingBuckets, 3)
}

func TestLoadFeeConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`fees:
  currency: USD
  reminderWindowDays: 5
  receiptTTL: 10m
  agingBuckets:
    - label: "1-15"
      minDays: 1
      maxDays: 15
    - label: "15+"
      minDays: 16
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fees.yml"), content, 0o600))

	holder, err := loadFeeConfig(zap.NewNop(), dir)
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 5, cfg.ReminderWindowDays)
	assert.Equal(t, 10*time.Minute, cfg.ReceiptTTL)
	assert.Equal(t, "1-15", cfg.BucketFor(3))
	assert.Equal(t, "15+", cfg.BucketFor(400))
	assert.Equal(t, "", cfg.BucketFor(0))
}

func TestValidateFeeConfigRejectsOverlappingBuckets(t *testing.T) {
	cfg := DefaultFeeConfig()
	cfg.AgingBuckets = []AgingBucket{
		{Label: "a", MinDays: 1, MaxDays: intPtr(30)},
		{Label: "b", MinDays: 20, MaxDays: nil},
	}
	assert.Error(t, validateFeeConfig(cfg))
}

func TestValidateFeeConfigRejectsOpenBucketInMiddle(t *testing.T) {
	cfg := DefaultFeeConfig()
	cfg.AgingBuckets = []AgingBucket{
		{Label: "a", MinDays: 1, MaxDays: nil},
		{Label: "b", MinDays: 40, MaxDays: intPtr(50)},
	}
	assert.Error(t, validateFeeConfig(cfg))
}
