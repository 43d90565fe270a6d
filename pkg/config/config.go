package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/betbot/swapcore/internal/domain"
)

// SessionConfig 凭证会话配置
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"` // 会话存活分钟数，默认 30
}

// TTL 返回会话 TTL
func (c SessionConfig) TTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

// RelayConfig relay 协作方配置
type RelayConfig struct {
	BaseURL      string `yaml:"base_url"`      // relay 服务地址
	ChainID      int    `yaml:"chain_id"`      // 链 ID
	APIKey       string `yaml:"api_key"`       // HMAC 鉴权 key
	APISecret    string `yaml:"api_secret"`    // HMAC 鉴权 secret（base64）
	Passphrase   string `yaml:"passphrase"`    // HMAC 鉴权 passphrase
	FeeRecipient string `yaml:"fee_recipient"` // 手续费接收地址（启动期校验）
	FeeBps       int    `yaml:"fee_bps"`       // 手续费基点
}

// WalletConfig 钱包协作方配置
type WalletConfig struct {
	DerivationPath  string `yaml:"derivation_path"`   // HD 派生路径，默认 m/44'/60'/0'/0/0
	SecretStorePath string `yaml:"secret_store_path"` // secretstore（badger）目录
	SecretStoreKey  string `yaml:"secret_store_key"`  // 32 字节加密 key（hex/base64），可由环境变量覆盖
}

// IndexerConfig 仓位 indexer 配置
type IndexerConfig struct {
	BaseURL string `yaml:"base_url"` // REST 地址
	WSURL   string `yaml:"ws_url"`   // 推送流地址（可选）
}

// MonitorConfig 风险监控配置
type MonitorConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"` // 轮询间隔（秒），默认 30
	CooldownSeconds int `yaml:"cooldown_seconds"` // 同一仓位告警冷却（秒），默认 300
}

// Interval 返回轮询间隔
func (c MonitorConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Cooldown 返回告警冷却窗口
func (c MonitorConfig) Cooldown() time.Duration {
	if c.CooldownSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CooldownSeconds) * time.Second
}

// NotifyConfig 通知 sink 配置
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"` // 为空则只写日志
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config 应用配置
type Config struct {
	Session    SessionConfig `yaml:"session"`
	Relay      RelayConfig   `yaml:"relay"`
	Wallet     WalletConfig  `yaml:"wallet"`
	Indexer    IndexerConfig `yaml:"indexer"`
	Monitor    MonitorConfig `yaml:"monitor"`
	Notify     NotifyConfig  `yaml:"notify"`
	Log        LogConfig     `yaml:"log"`
	ControlAPI string        `yaml:"control_api"` // 控制 API 监听地址，空则不启用
	MetricsAPI string        `yaml:"metrics_api"` // metrics/debug 监听地址，空则不启用
	TaskDBPath string        `yaml:"task_db_path"` // relay 任务流水 sqlite 路径
}

// Load 从 YAML 文件加载配置，应用环境变量覆盖，并做启动期校验。
// 校验失败返回包了 domain.ErrConfigurationInvalid 的错误：配置问题在启动时
// 一次性拒绝，不做逐次调用检查。
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 环境变量覆盖（密钥类配置优先从环境取，避免落盘）
func (c *Config) applyEnv() {
	if v := os.Getenv("SWAPCORE_RELAY_API_KEY"); v != "" {
		c.Relay.APIKey = v
	}
	if v := os.Getenv("SWAPCORE_RELAY_API_SECRET"); v != "" {
		c.Relay.APISecret = v
	}
	if v := os.Getenv("SWAPCORE_RELAY_PASSPHRASE"); v != "" {
		c.Relay.Passphrase = v
	}
	if v := os.Getenv("SWAPCORE_SECRET_STORE_KEY"); v != "" {
		c.Wallet.SecretStoreKey = v
	}
	if v := os.Getenv("SWAPCORE_SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.TTLMinutes = n
		}
	}
	if v := os.Getenv("SWAPCORE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate 启动期校验
func (c *Config) Validate() error {
	if c.Relay.FeeRecipient != "" && !common.IsHexAddress(c.Relay.FeeRecipient) {
		return fmt.Errorf("%w: fee_recipient 不是合法地址: %s",
			domain.ErrConfigurationInvalid, c.Relay.FeeRecipient)
	}
	if c.Relay.FeeBps < 0 || c.Relay.FeeBps > 10_000 {
		return fmt.Errorf("%w: fee_bps 超出范围: %d", domain.ErrConfigurationInvalid, c.Relay.FeeBps)
	}
	if c.Session.TTLMinutes < 0 {
		return fmt.Errorf("%w: session.ttl_minutes 不能为负", domain.ErrConfigurationInvalid)
	}
	if c.Monitor.IntervalSeconds < 0 {
		return fmt.Errorf("%w: monitor.interval_seconds 不能为负", domain.ErrConfigurationInvalid)
	}
	if c.Relay.BaseURL != "" && !strings.HasPrefix(c.Relay.BaseURL, "http") {
		return fmt.Errorf("%w: relay.base_url 非法: %s", domain.ErrConfigurationInvalid, c.Relay.BaseURL)
	}
	if c.Wallet.DerivationPath == "" {
		c.Wallet.DerivationPath = "m/44'/60'/0'/0/0"
	}
	return nil
}
