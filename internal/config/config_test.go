package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, "workorder-watcher", cfg.App.Name)
				assert.Equal(t, []string{"testdata"}, cfg.Watcher.Folders)
				assert.Equal(t, 2, cfg.Watcher.Concurrency)
				assert.Equal(t, "ftp.example.com", cfg.FTP.Host)
				assert.Equal(t, "/public_html", cfg.FTP.RemoteDir)
				assert.Equal(t, "42", cfg.Telegram.ChatID)
				assert.Equal(t, 120*time.Second, cfg.Confirmation.Timeout)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, 4, cfg.Watcher.Concurrency)
	assert.Equal(t, 16, cfg.Watcher.QueueSize)
	assert.Equal(t, []string{".xlsx"}, cfg.Watcher.Extensions)
	assert.Equal(t, []string{"~$"}, cfg.Watcher.IgnorePrefixes)

	assert.Equal(t, "C6", cfg.Extractor.Cells.ID)
	assert.Equal(t, "B7", cfg.Extractor.Cells.Partner)
	assert.Equal(t, "B12", cfg.Extractor.Cells.Device)
	assert.Equal(t, "E12", cfg.Extractor.Cells.SerialNumber)
	assert.Equal(t, "B13", cfg.Extractor.Cells.DeviceCode)
	assert.Equal(t, "B16", cfg.Extractor.Cells.FaultDescription)
	assert.Equal(t, "A19", cfg.Extractor.Cells.WorkDescription)
	assert.Equal(t, "E6", cfg.Extractor.Cells.Date)
	assert.Equal(t, 6, cfg.Extractor.LockRetryAttempts)
	assert.Equal(t, time.Second, cfg.Extractor.LockRetryWait)

	assert.Equal(t, 21, cfg.FTP.Port)
	assert.Equal(t, "data.txt", cfg.FTP.RemoteFile)
	assert.Equal(t, "work_order_details.html", cfg.FTP.DetailsFile)
	assert.Equal(t, 3, cfg.FTP.RetryAttempts)
	assert.Equal(t, time.Second, cfg.FTP.RetryWait)
	assert.Equal(t, 10*time.Second, cfg.FTP.Timeout)

	assert.Equal(t, 300*time.Second, cfg.Confirmation.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Confirmation.PollInterval)
	assert.Equal(t, []string{"da", "d"}, cfg.Confirmation.Affirmative)
	assert.Equal(t, []string{"ne", "n"}, cfg.Confirmation.Negative)

	assert.Equal(t, 15*time.Second, cfg.Telegram.RequestTimeout)
	assert.Equal(t, "logs", cfg.Audit.Dir)
}

func TestConfig_ApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Watcher: WatcherConfig{Concurrency: 8, IgnorePrefixes: []string{}},
		FTP:     FTPConfig{RetryAttempts: 5, RemoteFile: "broj.txt"},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, 8, cfg.Watcher.Concurrency)
	assert.Equal(t, 32, cfg.Watcher.QueueSize)
	assert.Empty(t, cfg.Watcher.IgnorePrefixes)
	assert.Equal(t, 5, cfg.FTP.RetryAttempts)
	assert.Equal(t, "broj.txt", cfg.FTP.RemoteFile)
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("FTP_HOST", "ftp.env.local")
	t.Setenv("FTP_PORT", "2121")
	t.Setenv("FTP_USER", "env-user")
	t.Setenv("FTP_PASS", "env-pass")
	t.Setenv("REMOTE_DIR", "/www")
	t.Setenv("REMOTE_FILE", "broj.txt")
	t.Setenv("BOT_TOKEN", "999:xyz")
	t.Setenv("CHAT_ID", "-100")
	t.Setenv("WATCH_FOLDERS", " a , ,b ")

	cfg := &Config{FTP: FTPConfig{Host: "from-file"}}
	cfg.ApplyEnv()

	assert.Equal(t, "ftp.env.local", cfg.FTP.Host)
	assert.Equal(t, 2121, cfg.FTP.Port)
	assert.Equal(t, "env-user", cfg.FTP.User)
	assert.Equal(t, "env-pass", cfg.FTP.Password)
	assert.Equal(t, "/www", cfg.FTP.RemoteDir)
	assert.Equal(t, "broj.txt", cfg.FTP.RemoteFile)
	assert.Equal(t, "999:xyz", cfg.Telegram.BotToken)
	assert.Equal(t, "-100", cfg.Telegram.ChatID)
	assert.Equal(t, []string{"a", "b"}, cfg.Watcher.Folders)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		Watcher:  WatcherConfig{Folders: []string{t.TempDir()}},
		FTP:      FTPConfig{Host: "ftp.example.com", User: "u", Password: "p"},
		Telegram: TelegramConfig{BotToken: "t", ChatID: "1"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "no folders",
			mutate:    func(c *Config) { c.Watcher.Folders = nil },
			wantErr:   true,
			errString: "at least one watch folder is required",
		},
		{
			name:      "missing folder",
			mutate:    func(c *Config) { c.Watcher.Folders = append(c.Watcher.Folders, "/nope/nowhere") },
			wantErr:   true,
			errString: "these folders don't exist: /nope/nowhere",
		},
		{
			name:      "audit dir inside watched folder",
			mutate:    func(c *Config) { c.Audit.Dir = filepath.Join(c.Watcher.Folders[0], "logs") },
			wantErr:   true,
			errString: "must not be inside watched folder",
		},
		{
			name:      "audit dir is the watched folder",
			mutate:    func(c *Config) { c.Audit.Dir = c.Watcher.Folders[0] },
			wantErr:   true,
			errString: "must not be inside watched folder",
		},
		{
			name:    "audit dir next to watched folder",
			mutate:  func(c *Config) { c.Audit.Dir = c.Watcher.Folders[0] + "-logs" },
			wantErr: false,
		},
		{
			name:      "empty ftp host",
			mutate:    func(c *Config) { c.FTP.Host = "" },
			wantErr:   true,
			errString: "ftp host is required",
		},
		{
			name:      "invalid ftp port",
			mutate:    func(c *Config) { c.FTP.Port = 70000 },
			wantErr:   true,
			errString: "invalid ftp port",
		},
		{
			name:      "missing ftp password",
			mutate:    func(c *Config) { c.FTP.Password = "" },
			wantErr:   true,
			errString: "ftp credentials are required",
		},
		{
			name:      "missing bot token",
			mutate:    func(c *Config) { c.Telegram.BotToken = "" },
			wantErr:   true,
			errString: "telegram bot token is required",
		},
		{
			name:      "missing chat id",
			mutate:    func(c *Config) { c.Telegram.ChatID = "" },
			wantErr:   true,
			errString: "telegram chat id is required",
		},
		{
			name: "database enabled without name",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: true, Host: "localhost", Port: 5432}
			},
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name: "rabbitmq enabled without exchange",
			mutate: func(c *Config) {
				c.RabbitMQ = RabbitMQConfig{Enabled: true, Host: "localhost", Port: 5672}
			},
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = -1 },
			wantErr:   true,
			errString: "invalid server port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.True(t, errors.Is(err, domain.ErrConfiguration))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		cfg.ApplyDefaults()

		require.NoError(t, cfg.Validate())
		assert.Equal(t, []string{".xlsx", ".xlsm"}, cfg.Watcher.Extensions)
	})

	t.Run("load config with missing folder", func(t *testing.T) {
		cfg, err := Load("testdata/missing_folder.yaml")
		require.NoError(t, err)
		cfg.ApplyDefaults()

		err = cfg.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.Contains(t, err.Error(), "testdata/does-not-exist")
	})
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"C:/RN", "D:/Servis"}, SplitList("C:/RN, D:/Servis"))
	assert.Nil(t, SplitList(" , "))
}
