package infra

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/pancudaniel7/blocksync-service/internal/adapter/evm"
	"github.com/pancudaniel7/blocksync-service/internal/adapter/explorer"
	"github.com/pancudaniel7/blocksync-service/internal/adapter/publish"
	"github.com/pancudaniel7/blocksync-service/internal/adapter/store"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
)

const (
	EnvPrefix = "BSYNC"

	ReaderExplorer = "explorer"
	ReaderEVM      = "evm"
)

// legacyEnv maps config keys to the variable names older deployments export.
var legacyEnv = map[string]string{
	"explorer.base_url":      "EXPLORER_RPC_URL",
	"kafka.host":             "SERVER_IP_ADDRESS",
	"kafka.port":             "SERVER_PORT",
	"kafka.topic":            "TOPIC_NAME",
	"kafka.tls.key_password": "SSL_PASSWORD",
	"kafka.sasl.username":    "SASL_PLAIN_USERNAME",
	"kafka.sasl.password":    "SASL_PLAIN_PASSWORD",
}

var defaults = map[string]any{
	"sync.interval_seconds":          60,
	"reader.driver":                  ReaderExplorer,
	"explorer.timeout_seconds":       0,
	"evm.timeout_seconds":            10,
	"kafka.topic":                    "blocks",
	"kafka.client_id":                "block-producer",
	"kafka.security_protocol":        publish.SecuritySASLSSL,
	"kafka.tls.ca_file":              "./certs/kafka.truststore.pem",
	"kafka.tls.keystore_file":        "./certs/kafka.keystore.pem",
	"kafka.tls.skip_hostname_verify": true,
	"kafka.write_timeout_seconds":    10,
	"kafka.ping_attempts":            5,
	"store.driver":                   store.DriverSQLite,
	"store.data_dir":                 "data",
	"redis.port":                     "6379",
	"redis.key":                      "blocksync:seen_blocks",
	"redis.dial_timeout_seconds":     5,
	"log.level":                      "info",
	"log.dir":                        "logs",
	"http.enabled":                   false,
	"http.addr":                      ":8081",
	"pprof.enabled":                  false,
	"pprof.addr":                     "127.0.0.1:6060",
}

// InitConfig loads .env (when present), defaults, environment variables and
// the YAML config file into the global viper instance. configFile may be empty,
// in which case configs/config.yml is looked up and may be absent.
func InitConfig(configFile string) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := gotenv.Load(".env"); err != nil {
			return apperr.NewConfigErr("failed to load .env", err)
		}
	}

	for k, v := range defaults {
		viper.SetDefault(k, v)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := viper.BindEnv(key, prefixed, legacy); err != nil {
			return apperr.NewConfigErr("failed to bind env for "+key, err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return apperr.NewConfigErr("failed to read config file", err)
	}
	return nil
}

// HTTPConfig controls the health and metrics server.
type HTTPConfig struct {
	Enabled bool
	Addr    string `validate:"required_if=Enabled true"`
}

// Config is the whole runtime configuration, assembled from viper and checked
// once at startup by Validate.
type Config struct {
	IntervalSeconds int    `validate:"gte=1"`
	ReaderDriver    string `validate:"oneof=explorer evm"`
	StoreDriver     string `validate:"oneof=sqlite redis"`

	Explorer explorer.Config `validate:"-"`
	EVM      evm.Config      `validate:"-"`
	Kafka    publish.Config
	SQLite   store.SQLiteConfig `validate:"-"`
	Redis    store.RedisConfig  `validate:"-"`
	HTTP     HTTPConfig
}

// LoadConfig reads the current viper state into a Config.
func LoadConfig() Config {
	return Config{
		IntervalSeconds: viper.GetInt("sync.interval_seconds"),
		ReaderDriver:    strings.ToLower(viper.GetString("reader.driver")),
		StoreDriver:     strings.ToLower(viper.GetString("store.driver")),
		Explorer: explorer.Config{
			BaseURL:        viper.GetString("explorer.base_url"),
			TimeoutSeconds: viper.GetInt("explorer.timeout_seconds"),
		},
		EVM: evm.Config{
			RPCURL:         viper.GetString("evm.rpc_url"),
			TimeoutSeconds: viper.GetInt("evm.timeout_seconds"),
		},
		Kafka: publish.Config{
			Host:             viper.GetString("kafka.host"),
			Port:             viper.GetInt("kafka.port"),
			Topic:            viper.GetString("kafka.topic"),
			ClientID:         viper.GetString("kafka.client_id"),
			SecurityProtocol: strings.ToUpper(viper.GetString("kafka.security_protocol")),
			SASL: publish.SASLConfig{
				Username: viper.GetString("kafka.sasl.username"),
				Password: viper.GetString("kafka.sasl.password"),
			},
			TLS: publish.TLSConfig{
				CAFile:             viper.GetString("kafka.tls.ca_file"),
				KeystoreFile:       viper.GetString("kafka.tls.keystore_file"),
				KeyFile:            viper.GetString("kafka.tls.key_file"),
				KeyPassword:        viper.GetString("kafka.tls.key_password"),
				SkipHostnameVerify: viper.GetBool("kafka.tls.skip_hostname_verify"),
			},
			WriteTimeoutSeconds: viper.GetInt("kafka.write_timeout_seconds"),
			PingAttempts:        viper.GetInt("kafka.ping_attempts"),
		},
		SQLite: store.SQLiteConfig{
			DataDir: viper.GetString("store.data_dir"),
		},
		Redis: store.RedisConfig{
			Host:               viper.GetString("redis.host"),
			Port:               viper.GetString("redis.port"),
			Password:           viper.GetString("redis.password"),
			DB:                 viper.GetInt("redis.db"),
			UseTLS:             viper.GetBool("redis.use_tls"),
			PoolSize:           viper.GetInt("redis.pool_size"),
			MaxRetries:         viper.GetInt("redis.max_retries"),
			DialTimeoutSeconds: viper.GetInt("redis.dial_timeout_seconds"),
			Key:                viper.GetString("redis.key"),
		},
		HTTP: HTTPConfig{
			Enabled: viper.GetBool("http.enabled"),
			Addr:    viper.GetString("http.addr"),
		},
	}
}

// Validate checks the top-level settings and the sections selected by the
// configured drivers. All offending fields are reported in one ConfigErr.
func (c Config) Validate(v *validator.Validate) error {
	sections := []any{c}
	switch c.ReaderDriver {
	case ReaderExplorer:
		sections = append(sections, c.Explorer)
	case ReaderEVM:
		sections = append(sections, c.EVM)
	}
	switch c.StoreDriver {
	case store.DriverSQLite:
		sections = append(sections, c.SQLite)
	case store.DriverRedis:
		sections = append(sections, c.Redis)
	}
	if c.Kafka.SecurityProtocol == publish.SecuritySASLSSL {
		sections = append(sections, c.Kafka.SASL, c.Kafka.TLS)
	}

	var fields []string
	for _, s := range sections {
		err := v.Struct(s)
		if err == nil {
			continue
		}
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return apperr.NewConfigErr("failed to validate configuration", err)
		}
		for _, fe := range ve {
			fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
		}
	}
	if len(fields) > 0 {
		sort.Strings(fields)
		return apperr.NewConfigErr("invalid configuration: "+strings.Join(fields, ", "), nil)
	}
	return nil
}
