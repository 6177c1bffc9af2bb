package verashield

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/op/go-logging"
)

const DAEMON_CONFIG_FILENAME = "vsd.toml"

//	Daemon configuration, ~/.verashield/vsd.toml. Every field has a safe
//	default so a missing file is not an error.
type Config struct {
	LogLevel string `toml:"log_level"`
	Syslog   bool   `toml:"syslog"`
	//	BlueZ adapter, e.g. "hci0"
	Adapter string `toml:"adapter"`
	//	advertised-name token scans filter on
	ProductToken string `toml:"product_token"`

	Timeouts struct {
		ConnectSeconds     int `toml:"connect_seconds"`
		ScanSeconds        int `toml:"scan_seconds"`
		SettleMillis       int `toml:"settle_millis"`
		OperationGapMillis int `toml:"operation_gap_millis"`
		RetryBackoffMillis int `toml:"retry_backoff_millis"`
	} `toml:"timeouts"`
}

func NewConfig() *Config {
	cfg := &Config{
		LogLevel:     "info",
		Adapter:      "hci0",
		ProductToken: ProductNameToken,
	}
	return cfg
}

//	Loads configPath, or the default file when configPath is empty. A file
//	that does not exist yields the defaults; a file that exists but does
//	not parse is an error.
func LoadConfig(configPath string) (cfg *Config, err error) {
	cfg = NewConfig()

	filePath := configPath
	if filePath == "" {
		filePath, err = VeraShieldDirFile(DAEMON_CONFIG_FILENAME)
		if err != nil {
			return
		}
		if _, statErr := os.Stat(filePath); statErr != nil {
			return
		}
	}

	_, err = toml.DecodeFile(filePath, cfg)
	if err != nil {
		cfg = nil
	}
	return
}

//	Zero fields fall through to the defaults.
func (cfg *Config) BuildTimeouts() Timeouts {
	timeouts := DefaultTimeouts()
	if cfg.Timeouts.ConnectSeconds > 0 {
		timeouts.Connect = time.Duration(cfg.Timeouts.ConnectSeconds) * time.Second
	}
	if cfg.Timeouts.ScanSeconds > 0 {
		timeouts.ScanWindow = time.Duration(cfg.Timeouts.ScanSeconds) * time.Second
	}
	if cfg.Timeouts.SettleMillis > 0 {
		timeouts.Settle = time.Duration(cfg.Timeouts.SettleMillis) * time.Millisecond
	}
	if cfg.Timeouts.OperationGapMillis > 0 {
		timeouts.OperationGap = time.Duration(cfg.Timeouts.OperationGapMillis) * time.Millisecond
	}
	if cfg.Timeouts.RetryBackoffMillis > 0 {
		timeouts.RetryBackoffUnit = time.Duration(cfg.Timeouts.RetryBackoffMillis) * time.Millisecond
	}
	return timeouts
}

func (cfg *Config) LogLevelValue() logging.Level {
	switch strings.ToUpper(cfg.LogLevel) {
	case "CRITICAL":
		return logging.CRITICAL
	case "ERROR":
		return logging.ERROR
	case "WARNING":
		return logging.WARNING
	case "NOTICE":
		return logging.NOTICE
	case "DEBUG":
		return logging.DEBUG
	}
	return logging.INFO
}
