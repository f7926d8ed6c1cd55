// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	CacheDir    string `yaml:"cache_dir"`
}

// Providers describes the per-market data source endpoints.
type Providers struct {
	TimeoutSecs int        `yaml:"timeout_secs"`
	US          USProvider `yaml:"us"`
	HK          HKProvider `yaml:"hk"`
	CN          CNProvider `yaml:"cn"`
}

// USProvider configures the US daily-prices HTTP API client.
type USProvider struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// HKProvider configures the local HK gateway websocket client.
type HKProvider struct {
	GatewayURL string `yaml:"gateway_url"`
}

// CNProvider configures the A-share HTTP API client.
type CNProvider struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// Risk encodes the guard-rails applied before any order is submitted.
type Risk struct {
	MaxNotionalUS  float64 `yaml:"max_notional_us"`
	MaxNotionalHK  float64 `yaml:"max_notional_hk"`
	MaxNotionalCN  float64 `yaml:"max_notional_cn"`
	MaxDailyTrades int     `yaml:"max_daily_trades"`
	MaxTickerRatio float64 `yaml:"max_ticker_ratio"`
	MaxTotalRatio  float64 `yaml:"max_total_ratio"`
	StopLoss       float64 `yaml:"stop_loss"`
	TakeProfit     float64 `yaml:"take_profit"`
}

// Sizing groups the Kelly position sizer parameters.
type Sizing struct {
	WinRate     float64 `yaml:"win_rate"`
	AvgWin      float64 `yaml:"avg_win"`
	AvgLoss     float64 `yaml:"avg_loss"`
	Fraction    float64 `yaml:"fraction"`
	MinPosition float64 `yaml:"min_position"`
	MaxPosition float64 `yaml:"max_position"`
}

// Kafka configures the optional signal publisher sink.
type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Job describes one scheduled signal run.
type Job struct {
	Name     string             `yaml:"name"`
	Ticker   string             `yaml:"ticker"`
	At       string             `yaml:"at"`
	Strategy string             `yaml:"strategy"`
	Params   map[string]float64 `yaml:"params"`
	Enabled  bool               `yaml:"enabled"`
}

// Paper captures the virtual account settings used when no live broker is wired.
type Paper struct {
	StartingCash float64 `yaml:"starting_cash"`
	TradeLogPath string  `yaml:"trade_log_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Providers Providers `yaml:"providers"`
	Risk      Risk      `yaml:"risk"`
	Sizing    Sizing    `yaml:"sizing"`
	Kafka     Kafka     `yaml:"kafka"`
	Jobs      []Job     `yaml:"jobs"`
	Paper     Paper     `yaml:"paper"`
}

// Load reads a YAML file from disk and hydrates a Config struct. Secrets
// left empty in the file fall back to the conventional environment
// variables so keys never have to live in version-controlled YAML.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyEnv()
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if c.Providers.US.APIKey == "" {
		c.Providers.US.APIKey = os.Getenv("FINANCIAL_DATASETS_API_KEY")
	}
	if c.Providers.CN.Token == "" {
		c.Providers.CN.Token = os.Getenv("TUSHARE_TOKEN")
	}
}
