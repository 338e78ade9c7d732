package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/cuongbtq/workorder-watcher/shared/retry"
	"github.com/jlaffaye/ftp"
)

// Conn is the subset of an FTP session the pipeline needs
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	Retr(path string) (io.ReadCloser, error)
	Stor(path string, r io.Reader) error
	Quit() error
}

// Dialer opens a new connection to addr
type Dialer func(ctx context.Context, addr string, timeout time.Duration) (Conn, error)

// Config holds FTP connection configuration
type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	RemoteDir     string
	Timeout       time.Duration
	RetryAttempts int
	RetryWait     time.Duration
}

// Client runs operations inside a connect/login/cwd/quit session with retries
type Client struct {
	config *Config
	dial   Dialer
	policy retry.Policy
	logger *slog.Logger
}

// NewClient creates a new FTP client. A nil dialer uses jlaffaye/ftp.
func NewClient(config *Config, dial Dialer, logger *slog.Logger) *Client {
	if dial == nil {
		dial = DialFTP
	}
	c := &Client{
		config: config,
		dial:   dial,
		logger: logger,
	}
	c.policy = retry.Policy{
		Attempts: config.RetryAttempts,
		Wait:     config.RetryWait,
		Backoff:  retry.Linear,
	}
	return c
}

// WithSleep replaces the sleep used between attempts
func (c *Client) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Client {
	c.policy.Sleep = sleep
	return c
}

// Session runs fn inside a fresh session, retrying the whole session on any failure
func (c *Client) Session(ctx context.Context, op string, fn func(conn Conn) error) error {
	policy := c.policy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.logger.Warn("FTP operation failed, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.Attempts),
			slog.Duration("retry_after", wait),
			slog.Any("error", err),
		)
	}

	return policy.Do(ctx, func(ctx context.Context, attempt int) error {
		return c.session(ctx, fn)
	})
}

func (c *Client) session(ctx context.Context, fn func(conn Conn) error) error {
	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))

	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	conn, err := c.dial(attemptCtx, addr, c.config.Timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if err := conn.Login(c.config.User, c.config.Password); err != nil {
		_ = conn.Quit()
		return fmt.Errorf("failed to login: %w", err)
	}

	if c.config.RemoteDir != "" {
		if err := conn.ChangeDir(c.config.RemoteDir); err != nil {
			_ = conn.Quit()
			return fmt.Errorf("failed to change dir to %s: %w", c.config.RemoteDir, err)
		}
	}

	if err := fn(conn); err != nil {
		_ = conn.Quit()
		return err
	}

	if err := conn.Quit(); err != nil {
		c.logger.Debug("FTP quit failed", slog.Any("error", err))
	}
	return nil
}

// ftpConn adapts *ftp.ServerConn to Conn
type ftpConn struct {
	*ftp.ServerConn
}

func (c ftpConn) Retr(path string) (io.ReadCloser, error) {
	resp, err := c.ServerConn.Retr(path)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DialFTP connects with github.com/jlaffaye/ftp
func DialFTP(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}
	return ftpConn{ServerConn: conn}, nil
}
