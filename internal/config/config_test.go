package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/tiered-staking/internal/types"
)

const sampleFile = `
port = "9000"
store_backend = "leveldb"
ledger_timeout = "3s"

[[pools]]
id = "main"
variant = "tiered"
authority = "0x00000000000000000000000000000000000000ad"
thresholds = [100, 200, 300]
tier_rates = [4, 8, 12]

[[pools]]
id = "token"
variant = "flat"
authority = "0x00000000000000000000000000000000000000ad"
base_rate = 7
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staking.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 5, cfg.BreakerFailures)
	assert.Equal(t, 2, cfg.BreakerSuccesses)
	assert.True(t, cfg.RequireSignatures, "Signatures are on unless disabled")
	assert.Equal(t, 5*time.Minute, cfg.SignatureMaxTTL)
	assert.Empty(t, cfg.Pools)
}

func TestLoad_FileThenEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeFile(t, sampleFile))
	t.Setenv("PORT", "9100")
	t.Setenv("REQUIRE_SIGNATURES", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port, "Environment wins over the file")
	assert.Equal(t, "leveldb", cfg.StoreBackend)
	assert.Equal(t, 3*time.Second, cfg.LedgerTimeout)
	assert.False(t, cfg.RequireSignatures)

	require.Len(t, cfg.Pools, 2)
	assert.Equal(t, types.VariantTiered, cfg.Pools[0].VariantValue())
	assert.Equal(t, []uint64{100, 200, 300}, cfg.Pools[0].Thresholds)
	require.NotNil(t, cfg.Pools[1].BaseRate)
	assert.Equal(t, uint64(7), *cfg.Pools[1].BaseRate)
}

func TestLoadFile_UnknownKey(t *testing.T) {
	cfg := Default()
	err := LoadFile(writeFile(t, `prot = "1"`), &cfg)
	assert.Error(t, err)
}

func TestLoad_InvalidPool(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeFile(t, `
[[pools]]
id = "token"
variant = "flat"
authority = "0x00000000000000000000000000000000000000ad"
thresholds = [1, 2, 3]
`))
	_, err := Load()
	assert.Error(t, err)
}

func TestPoolConfig_Validate(t *testing.T) {
	auth := "0x00000000000000000000000000000000000000ad"
	rate := uint64(5)
	tests := []struct {
		name    string
		pool    PoolConfig
		wantErr bool
	}{
		{"tiered defaults", PoolConfig{ID: "a", Authority: auth}, false},
		{"missing id", PoolConfig{Authority: auth}, true},
		{"bad variant", PoolConfig{ID: "a", Variant: "x", Authority: auth}, true},
		{"bad authority", PoolConfig{ID: "a", Authority: "alice"}, true},
		{"two thresholds", PoolConfig{ID: "a", Authority: auth, Thresholds: []uint64{1, 2}}, true},
		{"tiered with base rate", PoolConfig{ID: "a", Authority: auth, BaseRate: &rate}, true},
		{"flat with base rate", PoolConfig{ID: "a", Variant: "flat", Authority: auth, BaseRate: &rate}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pool.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "x")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DURATION", "2m")
	t.Setenv("TEST_FLOAT", "1.5")

	assert.Equal(t, 42, GetEnvAsInt("TEST_INT", 1))
	assert.Equal(t, 1, GetEnvAsInt("TEST_BAD_INT", 1))
	assert.True(t, GetEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, 2*time.Minute, GetEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, 1.5, GetEnvAsFloat("TEST_FLOAT", 0))
	assert.Equal(t, "fallback", GetEnvOrDefault("TEST_UNSET_KEY", "fallback"))
}
