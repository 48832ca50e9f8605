package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Poller    PollerConfig    `mapstructure:"poller"`
	FlagStore FlagStoreConfig `mapstructure:"flag_store"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Notice    NoticeConfig    `mapstructure:"notice"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Path         string `mapstructure:"path"` // sqlite 文件路径
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// BackendConfig 回归测试后端 API
type BackendConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Scopes       []string      `mapstructure:"scopes"`
}

type PollerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ProgressStep int           `mapstructure:"progress_step"`
	ProgressCap  int           `mapstructure:"progress_cap"`
}

type FlagStoreConfig struct {
	Driver    string `mapstructure:"driver"` // redis, database, memory
	KeyPrefix string `mapstructure:"key_prefix"`
}

type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	WatchTTL time.Duration `mapstructure:"watch_ttl"`
}

type NoticeConfig struct {
	InboxSize int `mapstructure:"inbox_size"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func Load(configPath string) (*Config, error) {
	// 优先读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Defaults()
	return &cfg, nil
}

// Defaults 填充未配置的默认值
func (c *Config) Defaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.JWT.ExpireHours == 0 {
		c.JWT.ExpireHours = 24
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.Poller.Interval == 0 {
		c.Poller.Interval = 5 * time.Second
	}
	if c.Poller.ProgressStep == 0 {
		c.Poller.ProgressStep = 10
	}
	if c.Poller.ProgressCap == 0 {
		c.Poller.ProgressCap = 95
	}
	if c.FlagStore.Driver == "" {
		c.FlagStore.Driver = "redis"
	}
	if c.FlagStore.KeyPrefix == "" {
		c.FlagStore.KeyPrefix = "profiling_workflow_advanced"
	}
	if c.Sweeper.Interval == 0 {
		c.Sweeper.Interval = 2 * time.Minute
	}
	if c.Sweeper.WatchTTL == 0 {
		c.Sweeper.WatchTTL = 6 * time.Hour
	}
	if c.Notice.InboxSize == 0 {
		c.Notice.InboxSize = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
