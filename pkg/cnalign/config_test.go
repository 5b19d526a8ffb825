package cnalign

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidateRejections(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"inverted ploidy":   func(c *Config) { c.MinPloidy, c.MaxPloidy = 4, 2 },
		"zero min ploidy":   func(c *Config) { c.MinPloidy = 0 },
		"inverted purity":   func(c *Config) { c.MinPurity, c.MaxPurity = 0.9, 0.5 },
		"purity above one":  func(c *Config) { c.MaxPurity = 1.2 },
		"zero min purity":   func(c *Config) { c.MinPurity = 0 },
		"weight above one":  func(c *Config) { c.MCNWeight = 1.5 },
		"negative weight":   func(c *Config) { c.MCNWeight = -0.1 },
		"zero rho":          func(c *Config) { c.Rho = 0 },
		"rho above one":     func(c *Config) { c.Rho = 1.01 },
		"negative delta":    func(c *Config) { c.DeltaMCNToAvg = -0.2 },
		"zero timeout":      func(c *Config) { c.StagnationTimeout = 0 },
		"zero pool":         func(c *Config) { c.SolCount = 0 },
		"zero copy cap":     func(c *Config) { c.MaxCopies = 0 },
		"negative homdel":   func(c *Config) { c.MaxHomdelMb = -1 },
		"negative seg size": func(c *Config) { c.MinAlignedSegMb = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "min_ploidy: 1.8\nrho: 0.6\nobj2_clonalonly: true\nstagnation_timeout: 30s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1.8, cfg.MinPloidy)
	assert.Equal(t, 0.6, cfg.Rho)
	assert.True(t, cfg.Obj2ClonalOnly)
	assert.Equal(t, Duration(30*time.Second), cfg.StagnationTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().MaxPloidy, cfg.MaxPloidy)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestReadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wls.lic")
	content := "# comment\nWLSACCESSID=abc-123\nWLSSECRET=s3cret\nLICENSEID=987654\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cred, err := ReadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", cred.AccessID)
	assert.Equal(t, "s3cret", cred.Secret)
	assert.Equal(t, 987654, cred.LicenseID)
}

func TestReadCredentialsMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wls.lic")
	require.NoError(t, os.WriteFile(path, []byte("WLSACCESSID=abc\n"), 0o600))
	_, err := ReadCredentials(path)
	assert.Error(t, err)
}

func TestReadCredentialsMalformedLicenseID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wls.lic")
	content := "WLSACCESSID=abc\nWLSSECRET=def\nLICENSEID=not-a-number\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	_, err := ReadCredentials(path)
	assert.Error(t, err)
}
