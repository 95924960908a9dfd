package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Конфигурация станции
type Config struct {
	Server struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"` // 0 отключает сервер статуса
		RefreshInterval string `yaml:"refresh_interval"`
		WriteTimeout    string `yaml:"write_timeout"` // дедлайн записи страницы одному зрителю
		History         int    `yaml:"history"`
	} `yaml:"server"`

	Tools struct {
		Overwrite string   `yaml:"overwrite"`
		Verify    string   `yaml:"verify"`
		Partition []string `yaml:"partition"`
		Mkfs      string   `yaml:"mkfs"`
	} `yaml:"tools"`

	Wipe struct {
		Profile     string   `yaml:"profile"`
		Patterns    []string `yaml:"patterns"`
		SettleDelay string   `yaml:"settle_delay"`
	} `yaml:"wipe"`

	Indicator struct {
		LED           string `yaml:"led"`
		BlinkInterval string `yaml:"blink_interval"`
		BlinkCount    int    `yaml:"blink_count"`
		ErrorRecheck  string `yaml:"error_recheck"`
	} `yaml:"indicator"`

	Feed struct {
		NATSURL string `yaml:"nats_url"`
		Subject string `yaml:"subject"`
	} `yaml:"feed"`

	Reporting struct {
		Enabled   bool   `yaml:"enabled"`
		LocalPath string `yaml:"local_path"`
	} `yaml:"reporting"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Security struct {
		RequireRoot bool `yaml:"require_root"`
	} `yaml:"security"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Host = ""
	cfg.Server.Port = 2342
	cfg.Server.RefreshInterval = "5s"
	cfg.Server.WriteTimeout = "10s"
	cfg.Server.History = 10

	cfg.Tools.Overwrite = "badblocks"
	cfg.Tools.Verify = "shred"
	// parted не сообщает ядру о новой таблице, поэтому используется отдельный скрипт
	cfg.Tools.Partition = []string{"sudo", "shreddy2-partition.sh"}
	cfg.Tools.Mkfs = "mkfs.vfat"

	cfg.Wipe.Profile = ""
	cfg.Wipe.Patterns = []string{"0", "255"}
	cfg.Wipe.SettleDelay = "3s"

	cfg.Indicator.LED = ""
	cfg.Indicator.BlinkInterval = "500ms"
	cfg.Indicator.BlinkCount = 10
	cfg.Indicator.ErrorRecheck = "2s"

	cfg.Feed.NATSURL = ""
	cfg.Feed.Subject = "shreddy.status"

	cfg.Reporting.Enabled = false
	cfg.Reporting.LocalPath = "./reports"

	cfg.Logging.Level = "INFO"
	cfg.Logging.File = ""

	cfg.Security.RequireRoot = true

	return cfg
}

// Load загружает конфигурацию из файла. Отсутствующий файл даёт значения по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Поля, не указанные в файле, остаются значениями по умолчанию
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if config.Wipe.Profile != "" {
		if err := ApplyProfile(config, config.Wipe.Profile); err != nil {
			return nil, err
		}
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate проверяет конфигурацию на валидность
func Validate(config *Config) error {
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 0 and 65535, got %d", config.Server.Port)
	}
	if config.Server.History <= 0 || config.Server.History > 1000 {
		return fmt.Errorf("server history must be between 1 and 1000, got %d", config.Server.History)
	}
	if err := validatePositiveDuration("server.refresh_interval", config.Server.RefreshInterval); err != nil {
		return err
	}
	if err := validatePositiveDuration("server.write_timeout", config.Server.WriteTimeout); err != nil {
		return err
	}

	if config.Tools.Overwrite == "" || config.Tools.Verify == "" || config.Tools.Mkfs == "" {
		return fmt.Errorf("tools.overwrite, tools.verify and tools.mkfs must be set")
	}
	if len(config.Tools.Partition) == 0 || config.Tools.Partition[0] == "" {
		return fmt.Errorf("tools.partition must name a command")
	}

	// Ровно два прохода с разными шаблонами
	if len(config.Wipe.Patterns) != 2 {
		return fmt.Errorf("exactly two overwrite patterns required, got %d", len(config.Wipe.Patterns))
	}
	for _, p := range config.Wipe.Patterns {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return fmt.Errorf("invalid overwrite pattern %q: must be a byte value 0-255", p)
		}
	}
	first, _ := strconv.Atoi(config.Wipe.Patterns[0])
	second, _ := strconv.Atoi(config.Wipe.Patterns[1])
	if first == second {
		return fmt.Errorf("overwrite patterns must differ, both are %d", first)
	}
	if config.Wipe.SettleDelay != "" {
		if _, err := time.ParseDuration(config.Wipe.SettleDelay); err != nil {
			return fmt.Errorf("invalid wipe.settle_delay: %s", config.Wipe.SettleDelay)
		}
	}

	if err := validatePositiveDuration("indicator.blink_interval", config.Indicator.BlinkInterval); err != nil {
		return err
	}
	if err := validatePositiveDuration("indicator.error_recheck", config.Indicator.ErrorRecheck); err != nil {
		return err
	}
	if config.Indicator.BlinkCount <= 0 || config.Indicator.BlinkCount > 100 {
		return fmt.Errorf("indicator blink count must be between 1 and 100, got %d", config.Indicator.BlinkCount)
	}

	if config.Feed.NATSURL != "" && config.Feed.Subject == "" {
		return fmt.Errorf("feed.subject is required when feed.nats_url is set")
	}

	if config.Reporting.Enabled && config.Reporting.LocalPath == "" {
		return fmt.Errorf("reporting.local_path is required when reporting is enabled")
	}

	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

func validatePositiveDuration(name, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", name, value)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return nil
}

// Save сохраняет конфигурацию в файл
func Save(config *Config, path string) error {
	if err := Validate(config); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Address возвращает адрес сервера статуса, пустая строка если сервер отключен
func (config *Config) Address() string {
	if config.Server.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
}

// RefreshInterval возвращает период обновления экрана статуса
func (config *Config) RefreshInterval() time.Duration {
	return parseDurationOr(config.Server.RefreshInterval, 5*time.Second)
}

// WriteTimeout возвращает дедлайн записи одной страницы статуса
func (config *Config) WriteTimeout() time.Duration {
	return parseDurationOr(config.Server.WriteTimeout, 10*time.Second)
}

// SettleDelay возвращает паузу перед разметкой
func (config *Config) SettleDelay() time.Duration {
	if config.Wipe.SettleDelay == "" {
		return 0
	}
	return parseDurationOr(config.Wipe.SettleDelay, 3*time.Second)
}

// BlinkInterval returns the indicator blink half-period.
func (config *Config) BlinkInterval() time.Duration {
	return parseDurationOr(config.Indicator.BlinkInterval, 500*time.Millisecond)
}

// ErrorRecheck returns the aggregator wake timeout used while in ERROR.
func (config *Config) ErrorRecheck() time.Duration {
	return parseDurationOr(config.Indicator.ErrorRecheck, 2*time.Second)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
