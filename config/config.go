package config

import (
	"fmt"
	"os"
	"time"

	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader"
	"github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/dastrader/model"
	postgres_wrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/infra/postgres"
	redis_wrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/infra/redis"
	kafkawrapper "github.com/CodeSlinger0110/Dashboard-DasTrader-BE/pkg/kafka_wrapper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AccountConfig is one brokerage account under a terminal login. One user
// login can carry several account codes; each enabled account gets its own
// session.
type AccountConfig struct {
	AccountID string `yaml:"account_id"`
	Name      string `yaml:"name"`
	Account   string `yaml:"account"`
	Enabled   bool   `yaml:"enabled"`
}

// UserConfig is one terminal login: the host/port/credentials shared by
// its accounts.
type UserConfig struct {
	UserID   string          `yaml:"user_id"`
	Name     string          `yaml:"name"`
	Username string          `yaml:"username"`
	Password string          `yaml:"password"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	Accounts []AccountConfig `yaml:"accounts"`
}

// ProtocolConfig overrides the protocol timeout defaults. Zero fields keep
// the default.
type ProtocolConfig struct {
	DialTimeoutMs      int `yaml:"dial_timeout_ms"`
	LoginReadTimeoutMs int `yaml:"login_read_timeout_ms"`
	CommandLocalMs     int `yaml:"command_local_ms"`
	CommandRemoteMs    int `yaml:"command_remote_ms"`
	BulkConnectMs      int `yaml:"bulk_connect_ms"`
}

// UpdateFeedConfig configures the Kafka update feed and its journal
// consumer.
type UpdateFeedConfig struct {
	Topic    string                       `yaml:"topic"`
	Producer *kafkawrapper.ProducerConfig `yaml:"producer"`
	Consumer *kafkawrapper.ConsumerConfig `yaml:"consumer"`
}

// SnapshotConfig configures the Redis snapshot cache.
type SnapshotConfig struct {
	Redis      *redis_wrapper.RedisConfig `yaml:"redis"`
	TTLSeconds int                        `yaml:"ttl_seconds"`
}

type AppConfig struct {
	ServiceName            string                           `yaml:"service_name"`
	LogLevel               string                           `yaml:"log_level"`
	RefreshIntervalSeconds int                              `yaml:"refresh_interval_seconds"`
	Users                  []UserConfig                     `yaml:"users"`
	Protocol               *ProtocolConfig                  `yaml:"protocol"`
	UpdateFeed             *UpdateFeedConfig                `yaml:"update_feed"`
	Snapshot               *SnapshotConfig                  `yaml:"snapshot"`
	JournalDB              *postgres_wrapper.PostgresConfig `yaml:"journal_db"`
	MigrationSource        string                           `yaml:"migration_source"`
}

// Load reads config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	sugar := zap.S().With("func", "config.Load", "file_path", filePath)
	sugar.Debug("loading config")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		sugar.Error("failed to parse config file")
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	seen := make(map[string]bool)
	for _, user := range c.Users {
		if user.Host == "" || user.Port == 0 {
			return fmt.Errorf("user %s: host and port are required", user.UserID)
		}
		for _, acct := range user.Accounts {
			if acct.AccountID == "" {
				return fmt.Errorf("user %s: account with empty account_id", user.UserID)
			}
			if seen[acct.AccountID] {
				return fmt.Errorf("duplicate account_id %s", acct.AccountID)
			}
			seen[acct.AccountID] = true
		}
	}
	return nil
}

// AccountCredential is the flattened view of one enabled account together
// with its user's connection identity.
type AccountCredential struct {
	AccountID  string
	Credential model.Credential
}

// EnabledAccounts flattens the user/account tree, one entry per enabled
// account.
func (c *AppConfig) EnabledAccounts() []AccountCredential {
	var out []AccountCredential
	for _, user := range c.Users {
		for _, acct := range user.Accounts {
			if !acct.Enabled {
				continue
			}
			out = append(out, AccountCredential{
				AccountID: acct.AccountID,
				Credential: model.Credential{
					Host:     user.Host,
					Port:     user.Port,
					Username: user.Username,
					Password: user.Password,
					Account:  acct.Account,
				},
			})
		}
	}
	return out
}

// Timeouts maps the protocol overrides onto the defaults.
func (c *AppConfig) Timeouts() dastrader.Timeouts {
	t := dastrader.DefaultTimeouts()
	p := c.Protocol
	if p == nil {
		return t
	}
	if p.DialTimeoutMs > 0 {
		t.Dial = time.Duration(p.DialTimeoutMs) * time.Millisecond
	}
	if p.LoginReadTimeoutMs > 0 {
		t.LoginRead = time.Duration(p.LoginReadTimeoutMs) * time.Millisecond
	}
	if p.CommandLocalMs > 0 {
		t.CommandLocal = time.Duration(p.CommandLocalMs) * time.Millisecond
	}
	if p.CommandRemoteMs > 0 {
		t.CommandRemote = time.Duration(p.CommandRemoteMs) * time.Millisecond
	}
	if p.BulkConnectMs > 0 {
		t.BulkConnect = time.Duration(p.BulkConnectMs) * time.Millisecond
	}
	return t
}

// RefreshInterval returns the periodic refresh cadence, defaulting to 5s.
func (c *AppConfig) RefreshInterval() time.Duration {
	if c.RefreshIntervalSeconds > 0 {
		return time.Duration(c.RefreshIntervalSeconds) * time.Second
	}
	return 5 * time.Second
}

// SnapshotTTL returns the snapshot cache TTL, defaulting to one minute.
func (c *AppConfig) SnapshotTTL() time.Duration {
	if c.Snapshot != nil && c.Snapshot.TTLSeconds > 0 {
		return time.Duration(c.Snapshot.TTLSeconds) * time.Second
	}
	return time.Minute
}
