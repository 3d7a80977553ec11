package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sampleConfig = `
service_name: das-bridge
log_level: debug
refresh_interval_seconds: 10
users:
  - user_id: u1
    username: trader1
    password: ${DAS_TEST_PASSWORD}
    host: 127.0.0.1
    port: 9910
    accounts:
      - account_id: acc-main
        account: TR1MAIN
        enabled: true
      - account_id: acc-swing
        account: TR1SWING
        enabled: false
protocol:
  dial_timeout_ms: 2000
  command_remote_ms: 3000
`

func TestLoadExpandsEnvAndFlattensAccounts(t *testing.T) {
	t.Setenv("DAS_TEST_PASSWORD", "s3cret")
	path := writeConfig(t, sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "das-bridge", cfg.ServiceName)
	assert.Equal(t, 10*time.Second, cfg.RefreshInterval())

	accounts := cfg.EnabledAccounts()
	require.Len(t, accounts, 1, "disabled accounts are skipped")
	assert.Equal(t, "acc-main", accounts[0].AccountID)
	assert.Equal(t, "s3cret", accounts[0].Credential.Password)
	assert.Equal(t, "TR1MAIN", accounts[0].Credential.Account)
	assert.Equal(t, "127.0.0.1:9910", accounts[0].Credential.Addr())
}

func TestTimeoutOverrides(t *testing.T) {
	t.Setenv("DAS_TEST_PASSWORD", "x")
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	timeouts := cfg.Timeouts()
	assert.Equal(t, 2*time.Second, timeouts.Dial)
	assert.Equal(t, 3*time.Second, timeouts.CommandRemote)
	// untouched fields keep the defaults
	assert.Equal(t, 500*time.Millisecond, timeouts.CommandLocal)
}

func TestLoadRejectsDuplicateAccountIDs(t *testing.T) {
	body := `
users:
  - user_id: u1
    host: 127.0.0.1
    port: 9910
    accounts:
      - account_id: acc-1
        enabled: true
  - user_id: u2
    host: 127.0.0.1
    port: 9911
    accounts:
      - account_id: acc-1
        enabled: true
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate account_id")
}

func TestLoadRejectsMissingHost(t *testing.T) {
	body := `
users:
  - user_id: u1
    accounts:
      - account_id: acc-1
`
	_, err := Load(writeConfig(t, body))
	require.Error(t, err)
}

func TestLoadFallsBackToEnvPath(t *testing.T) {
	t.Setenv("DAS_TEST_PASSWORD", "x")
	path := writeConfig(t, sampleConfig)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "das-bridge", cfg.ServiceName)
}

func TestDefaultsWhenSectionsAbsent(t *testing.T) {
	cfg, err := Load(writeConfig(t, "service_name: das-bridge\n"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.RefreshInterval())
	assert.Equal(t, time.Minute, cfg.SnapshotTTL())
	assert.Equal(t, time.Second, cfg.Timeouts().Dial)
	assert.Empty(t, cfg.EnabledAccounts())
}
