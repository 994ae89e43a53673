package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

const plaintextYAML = `
sync:
  interval_seconds: 5
explorer:
  base_url: https://explorer.example/api/
kafka:
  host: 127.0.0.1
  port: 9092
  security_protocol: PLAINTEXT
store:
  data_dir: /tmp/blocksync
`

func TestInitConfig_FileAndDefaults(t *testing.T) {
	resetViper(t)
	require.NoError(t, InitConfig(writeConfig(t, plaintextYAML)))

	cfg := LoadConfig()
	require.Equal(t, 5, cfg.IntervalSeconds)
	require.Equal(t, ReaderExplorer, cfg.ReaderDriver)
	require.Equal(t, "sqlite", cfg.StoreDriver)
	require.Equal(t, "https://explorer.example/api/", cfg.Explorer.BaseURL)
	require.Equal(t, "127.0.0.1", cfg.Kafka.Host)
	require.Equal(t, 9092, cfg.Kafka.Port)
	require.Equal(t, "blocks", cfg.Kafka.Topic)
	require.Equal(t, "block-producer", cfg.Kafka.ClientID)
	require.Equal(t, "PLAINTEXT", cfg.Kafka.SecurityProtocol)
	require.Equal(t, 10, cfg.Kafka.WriteTimeoutSeconds)
	require.True(t, cfg.Kafka.TLS.SkipHostnameVerify)
	require.Equal(t, "/tmp/blocksync", cfg.SQLite.DataDir)
	require.False(t, cfg.HTTP.Enabled)

	require.NoError(t, cfg.Validate(validator.New()))
}

func TestInitConfig_EnvOverridesAndLegacyNames(t *testing.T) {
	resetViper(t)
	t.Setenv("SERVER_IP_ADDRESS", "10.0.0.5")
	t.Setenv("SERVER_PORT", "9094")
	t.Setenv("TOPIC_NAME", "btc-blocks")
	t.Setenv("EXPLORER_RPC_URL", "https://legacy.example/api")
	t.Setenv("SASL_PLAIN_USERNAME", "producer")
	t.Setenv("SASL_PLAIN_PASSWORD", "secret")
	t.Setenv("SSL_PASSWORD", "changeit")
	t.Setenv("BSYNC_KAFKA_HOST", "broker-1")
	t.Setenv("BSYNC_STORE_DRIVER", "redis")

	require.NoError(t, InitConfig(writeConfig(t, plaintextYAML)))
	cfg := LoadConfig()

	require.Equal(t, "broker-1", cfg.Kafka.Host, "prefixed variable wins over the legacy name")
	require.Equal(t, 9094, cfg.Kafka.Port)
	require.Equal(t, "btc-blocks", cfg.Kafka.Topic)
	require.Equal(t, "https://legacy.example/api", cfg.Explorer.BaseURL)
	require.Equal(t, "producer", cfg.Kafka.SASL.Username)
	require.Equal(t, "secret", cfg.Kafka.SASL.Password)
	require.Equal(t, "changeit", cfg.Kafka.TLS.KeyPassword)
	require.Equal(t, "redis", cfg.StoreDriver)
}

func TestInitConfig_MissingExplicitFile(t *testing.T) {
	resetViper(t)
	err := InitConfig(filepath.Join(t.TempDir(), "absent.yml"))
	var ce *apperr.ConfigErr
	require.ErrorAs(t, err, &ce)
}

func TestConfig_Validate(t *testing.T) {
	v := validator.New()
	base := func() Config {
		resetViper(t)
		require.NoError(t, InitConfig(writeConfig(t, plaintextYAML)))
		return LoadConfig()
	}

	cases := []struct {
		name       string
		mod        func(c *Config)
		wantFields []string
	}{
		{
			name:       "missing explorer url and broker",
			mod:        func(c *Config) { c.Explorer.BaseURL = ""; c.Kafka.Host = "" },
			wantFields: []string{"BaseURL", "Kafka.Host"},
		},
		{
			name:       "zero interval",
			mod:        func(c *Config) { c.IntervalSeconds = 0 },
			wantFields: []string{"IntervalSeconds"},
		},
		{
			name:       "unknown drivers",
			mod:        func(c *Config) { c.ReaderDriver = "grpc"; c.StoreDriver = "etcd" },
			wantFields: []string{"ReaderDriver", "StoreDriver"},
		},
		{
			name:       "evm without rpc url",
			mod:        func(c *Config) { c.ReaderDriver = ReaderEVM },
			wantFields: []string{"RPCURL"},
		},
		{
			name:       "redis without host",
			mod:        func(c *Config) { c.StoreDriver = "redis" },
			wantFields: []string{"Host"},
		},
		{
			name: "sasl_ssl without credentials or certs",
			mod: func(c *Config) {
				c.Kafka.SecurityProtocol = "SASL_SSL"
				c.Kafka.TLS.CAFile = "/nope/ca.pem"
				c.Kafka.TLS.KeystoreFile = "/nope/keystore.pem"
			},
			wantFields: []string{"Username", "Password", "CAFile", "KeystoreFile"},
		},
		{
			name:       "http enabled without addr",
			mod:        func(c *Config) { c.HTTP.Enabled = true; c.HTTP.Addr = "" },
			wantFields: []string{"HTTP.Addr"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mod(&cfg)
			err := cfg.Validate(v)
			var ce *apperr.ConfigErr
			require.ErrorAs(t, err, &ce)
			for _, f := range tc.wantFields {
				require.Contains(t, err.Error(), f)
			}
		})
	}
}
