package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medikart/medikart-backend/pkg/config"
)

func storeWithPromos() config.StoreConfig {
	return config.StoreConfig{
		LowStockThreshold: 10,
		ExpiryWindowDays:  90,
		PromoCodes: []config.PromoCode{
			{Code: "SAVE10", Percent: 10},
			{Code: "LAUNCH", Percent: 0},
		},
	}
}

func TestStoreConfig_FindPromo(t *testing.T) {
	store := storeWithPromos()

	t.Run("matches case-insensitively", func(t *testing.T) {
		for _, code := range []string{"SAVE10", "save10", "Save10", "  save10  "} {
			promo := store.FindPromo(code)
			require.NotNil(t, promo, "code %q", code)
			assert.Equal(t, 10, promo.Percent)
		}
	})

	t.Run("unknown code yields nil", func(t *testing.T) {
		assert.Nil(t, store.FindPromo("NOPE"))
	})

	t.Run("empty code yields nil", func(t *testing.T) {
		assert.Nil(t, store.FindPromo(""))
		assert.Nil(t, store.FindPromo("   "))
	})

	t.Run("non-positive discount yields nil", func(t *testing.T) {
		assert.Nil(t, store.FindPromo("LAUNCH"))
	})
}

func TestDatabaseConfig_Validate(t *testing.T) {
	t.Run("localhost allowed in development", func(t *testing.T) {
		cfg := config.DatabaseConfig{Host: "localhost"}
		assert.NoError(t, cfg.Validate(config.EnvDevelopment))
	})

	t.Run("localhost rejected in production", func(t *testing.T) {
		cfg := config.DatabaseConfig{Host: "localhost"}
		assert.Error(t, cfg.Validate(config.EnvProduction))
	})

	t.Run("missing host rejected in staging", func(t *testing.T) {
		cfg := config.DatabaseConfig{}
		assert.Error(t, cfg.Validate(config.EnvStaging))
	})
}
