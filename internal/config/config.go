package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	App          AppConfig          `yaml:"app"`
	Logging      LoggingConfig      `yaml:"logging"`
	Watcher      WatcherConfig      `yaml:"watcher"`
	Extractor    ExtractorConfig    `yaml:"extractor"`
	FTP          FTPConfig          `yaml:"ftp"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Confirmation ConfirmationConfig `yaml:"confirmation"`
	State        StateConfig        `yaml:"state"`
	Audit        AuditConfig        `yaml:"audit"`
	Database     DatabaseConfig     `yaml:"database"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
	Server       ServerConfig       `yaml:"server"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// WatcherConfig holds folder watching and worker pool settings
type WatcherConfig struct {
	Folders         []string      `yaml:"folders"`
	Extensions      []string      `yaml:"extensions"`
	IgnorePrefixes  []string      `yaml:"ignore_prefixes"`
	Concurrency     int           `yaml:"concurrency"`
	QueueSize       int           `yaml:"queue_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ExtractorConfig holds the cell layout of a work order document
type ExtractorConfig struct {
	Cells             CellsConfig   `yaml:"cells"`
	LockRetryAttempts int           `yaml:"lock_retry_attempts"`
	LockRetryWait     time.Duration `yaml:"lock_retry_wait"`
}

// CellsConfig maps each work order field to a cell coordinate
type CellsConfig struct {
	ID               string `yaml:"id"`
	Partner          string `yaml:"partner"`
	Device           string `yaml:"device"`
	SerialNumber     string `yaml:"serial_number"`
	DeviceCode       string `yaml:"device_code"`
	FaultDescription string `yaml:"fault_description"`
	WorkDescription  string `yaml:"work_description"`
	Date             string `yaml:"date"`
}

// FTPConfig holds the remote file store connection settings
type FTPConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	RemoteDir     string        `yaml:"remote_dir"`
	RemoteFile    string        `yaml:"remote_file"`
	DetailsFile   string        `yaml:"details_file"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryWait     time.Duration `yaml:"retry_wait"`
}

// TelegramConfig holds the chat bot settings
type TelegramConfig struct {
	BaseURL        string        `yaml:"base_url"`
	BotToken       string        `yaml:"bot_token"`
	ChatID         string        `yaml:"chat_id"`
	PollTimeout    time.Duration `yaml:"poll_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ConfirmationConfig holds the human confirmation protocol settings
type ConfirmationConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Affirmative  []string      `yaml:"affirmative"`
	Negative     []string      `yaml:"negative"`
}

// StateConfig holds local working files
type StateConfig struct {
	WorkDir     string `yaml:"work_dir"`
	CounterFile string `yaml:"counter_file"`
}

// AuditConfig selects the audit sinks
type AuditConfig struct {
	Dir      string `yaml:"dir"`
	Text     bool   `yaml:"text"`
	CSV      bool   `yaml:"csv"`
	Workbook bool   `yaml:"workbook"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ServerConfig holds the optional status HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ApplyEnv overlays credentials and folders from the environment
func (c *Config) ApplyEnv() {
	setString(&c.FTP.Host, "FTP_HOST")
	setString(&c.FTP.User, "FTP_USER")
	setString(&c.FTP.Password, "FTP_PASS")
	setString(&c.FTP.RemoteDir, "REMOTE_DIR")
	setString(&c.FTP.RemoteFile, "REMOTE_FILE")
	setString(&c.Telegram.BotToken, "BOT_TOKEN")
	setString(&c.Telegram.ChatID, "CHAT_ID")

	if v := os.Getenv("FTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.FTP.Port = port
		}
	}
	if v := os.Getenv("WATCH_FOLDERS"); v != "" {
		c.Watcher.Folders = SplitList(v)
	}
}

// ApplyDefaults fills every unset value with its default
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "workorder-watcher"
	}

	if len(c.Watcher.Extensions) == 0 {
		c.Watcher.Extensions = []string{domain.DefaultTriggerExtension}
	}
	if c.Watcher.IgnorePrefixes == nil {
		c.Watcher.IgnorePrefixes = []string{"~$"}
	}
	setInt(&c.Watcher.Concurrency, 4)
	setInt(&c.Watcher.QueueSize, c.Watcher.Concurrency*4)
	setDuration(&c.Watcher.ShutdownTimeout, 30*time.Second)

	cells := &c.Extractor.Cells
	setDefaultString(&cells.ID, "C6")
	setDefaultString(&cells.Partner, "B7")
	setDefaultString(&cells.Device, "B12")
	setDefaultString(&cells.SerialNumber, "E12")
	setDefaultString(&cells.DeviceCode, "B13")
	setDefaultString(&cells.FaultDescription, "B16")
	setDefaultString(&cells.WorkDescription, "A19")
	setDefaultString(&cells.Date, "E6")
	// 1 attempt plus 5 retries waiting 1s..5s
	setInt(&c.Extractor.LockRetryAttempts, 6)
	setDuration(&c.Extractor.LockRetryWait, time.Second)

	setInt(&c.FTP.Port, 21)
	setDefaultString(&c.FTP.RemoteFile, domain.DefaultCounterFile)
	setDefaultString(&c.FTP.DetailsFile, domain.DefaultDetailsFile)
	setDuration(&c.FTP.Timeout, 10*time.Second)
	setInt(&c.FTP.RetryAttempts, 3)
	setDuration(&c.FTP.RetryWait, time.Second)

	setDefaultString(&c.Telegram.BaseURL, "https://api.telegram.org")
	setDuration(&c.Telegram.PollTimeout, 5*time.Second)
	setDuration(&c.Telegram.RequestTimeout, c.Telegram.PollTimeout+10*time.Second)

	setDuration(&c.Confirmation.Timeout, 300*time.Second)
	setDuration(&c.Confirmation.PollInterval, 3*time.Second)
	if len(c.Confirmation.Affirmative) == 0 {
		c.Confirmation.Affirmative = []string{"da", "d"}
	}
	if len(c.Confirmation.Negative) == 0 {
		c.Confirmation.Negative = []string{"ne", "n"}
	}

	setDefaultString(&c.State.WorkDir, ".")
	setDefaultString(&c.State.CounterFile, "data.txt")

	setDefaultString(&c.Audit.Dir, "logs")

	setInt(&c.Database.RetryAttempts, 3)
	setDuration(&c.Database.RetryInterval, 2*time.Second)

	setDuration(&c.Server.ReadTimeout, 10*time.Second)
	setDuration(&c.Server.WriteTimeout, 10*time.Second)
	setDuration(&c.Server.IdleTimeout, 60*time.Second)
	setDuration(&c.Server.ShutdownTimeout, 10*time.Second)
}

// Validate checks if the configuration is valid.
// Every returned error wraps domain.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.Watcher.Folders) == 0 {
		return fmt.Errorf("at least one watch folder is required")
	}

	var missing []string
	for _, folder := range c.Watcher.Folders {
		info, err := os.Stat(folder)
		if err != nil || !info.IsDir() {
			missing = append(missing, folder)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("these folders don't exist: %s", strings.Join(missing, ", "))
	}

	// audit files written under a watched folder would be picked up as new documents
	if c.Audit.Dir != "" {
		for _, folder := range c.Watcher.Folders {
			if isWithin(c.Audit.Dir, folder) {
				return fmt.Errorf("audit dir %s must not be inside watched folder %s", c.Audit.Dir, folder)
			}
		}
	}

	if c.Watcher.Concurrency <= 0 {
		return fmt.Errorf("watcher concurrency must be greater than 0")
	}

	if c.FTP.Host == "" {
		return fmt.Errorf("ftp host is required")
	}

	if c.FTP.Port < MinPort || c.FTP.Port > MaxPort {
		return fmt.Errorf("invalid ftp port: %d (must be between %d and %d)", c.FTP.Port, MinPort, MaxPort)
	}

	if c.FTP.User == "" || c.FTP.Password == "" {
		return fmt.Errorf("ftp credentials are required")
	}

	if c.FTP.RemoteFile == "" {
		return fmt.Errorf("ftp remote file is required")
	}

	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram chat id is required")
	}

	if c.Confirmation.Timeout <= 0 || c.Confirmation.PollInterval <= 0 {
		return fmt.Errorf("confirmation timeout and poll_interval must be greater than 0")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
	}

	if c.Server.Port != 0 && (c.Server.Port < MinPort || c.Server.Port > MaxPort) {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return nil
}

// isWithin reports whether path is dir or lies below it
func isWithin(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// SplitList splits a comma separated list, dropping blanks
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDefaultString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}
