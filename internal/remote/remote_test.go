package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/domain"
	"github.com/cuongbtq/workorder-watcher/shared/logger"
	"github.com/cuongbtq/workorder-watcher/shared/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is an in-memory FTP server shared by every fake connection
type fakeServer struct {
	mu       sync.Mutex
	files    map[string][]byte
	dials    int
	dialErrs int // fail this many dials first
	loginErr error
	storErrs map[string]int // fail this many STORs per name
	cwd      []string
	quits    int
}

func newFakeServer() *fakeServer {
	return &fakeServer{files: map[string][]byte{}, storErrs: map[string]int{}}
}

func (s *fakeServer) dial(_ context.Context, addr string, _ time.Duration) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if s.dialErrs > 0 {
		s.dialErrs--
		return nil, errors.New("connection reset by peer")
	}
	return &fakeConn{server: s}, nil
}

type fakeConn struct {
	server *fakeServer
}

func (c *fakeConn) Login(user, password string) error {
	return c.server.loginErr
}

func (c *fakeConn) ChangeDir(path string) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.server.cwd = append(c.server.cwd, path)
	return nil
}

func (c *fakeConn) Retr(path string) (io.ReadCloser, error) {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	data, ok := c.server.files[path]
	if !ok {
		return nil, errors.New("550 file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *fakeConn) Stor(path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if c.server.storErrs[path] > 0 {
		c.server.storErrs[path]--
		return errors.New("426 transfer aborted")
	}
	c.server.files[path] = data
	return nil
}

func (c *fakeConn) Quit() error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	c.server.quits++
	return nil
}

type sleeps struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func newTestClient(server *fakeServer, rec *sleeps) *Client {
	cfg := &Config{
		Host:          "ftp.example.com",
		Port:          21,
		User:          "servis",
		Password:      "secret",
		RemoteDir:     "/public_html",
		Timeout:       time.Second,
		RetryAttempts: 3,
		RetryWait:     time.Second,
	}
	return NewClient(cfg, server.dial, logger.NewDiscard().Logger).WithSleep(rec.sleep)
}

func TestCounterStore_ReadCounter(t *testing.T) {
	tests := []struct {
		name      string
		content   *string
		dialErrs  int
		loginErr  error
		wantState string
		wantValue int
		wantDials int
	}{
		{name: "plain number", content: ptr("10\n"), wantState: domain.CounterPresent, wantValue: 10, wantDials: 1},
		{name: "formatted line", content: ptr("0012/2025        07.11.2025.\n"), wantState: domain.CounterPresent, wantValue: 12, wantDials: 1},
		{name: "only zeros", content: ptr("0000/2025\n"), wantState: domain.CounterPresent, wantValue: 0, wantDials: 1},
		{name: "empty file", content: ptr(""), wantState: domain.CounterAbsent, wantDials: 1},
		{name: "blank first line", content: ptr("   \n"), wantState: domain.CounterAbsent, wantDials: 1},
		{name: "garbage", content: ptr("n/a\n"), wantState: domain.CounterUnknown, wantDials: 1},
		{name: "missing file exhausts retries", content: nil, wantState: domain.CounterUnknown, wantDials: 3},
		{name: "transient dial failure recovers", content: ptr("7/2025\n"), dialErrs: 2, wantState: domain.CounterPresent, wantValue: 7, wantDials: 3},
		{name: "auth failure exhausts retries", content: ptr("7/2025\n"), loginErr: errors.New("530 login incorrect"), wantState: domain.CounterUnknown, wantDials: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeServer()
			server.dialErrs = tt.dialErrs
			server.loginErr = tt.loginErr
			if tt.content != nil {
				server.files["data.txt"] = []byte(*tt.content)
			}
			rec := &sleeps{}
			store := NewCounterStore(newTestClient(server, rec), "data.txt", logger.NewDiscard().Logger)

			reading := store.ReadCounter(context.Background())

			assert.Equal(t, tt.wantState, reading.State)
			assert.Equal(t, tt.wantValue, reading.Value)
			assert.Equal(t, tt.wantDials, server.dials)
			assert.Len(t, rec.waits, tt.wantDials-1)
		})
	}
}

func TestCounterStore_ReadCounterBackoff(t *testing.T) {
	server := newFakeServer()
	rec := &sleeps{}
	store := NewCounterStore(newTestClient(server, rec), "data.txt", logger.NewDiscard().Logger)

	reading := store.ReadCounter(context.Background())

	assert.Equal(t, domain.CounterUnknown, reading.State)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.waits)
	assert.Equal(t, []string{"/public_html", "/public_html", "/public_html"}, server.cwd)
}

func TestCounterStore_WriteCounter(t *testing.T) {
	t.Run("stores content", func(t *testing.T) {
		server := newFakeServer()
		store := NewCounterStore(newTestClient(server, &sleeps{}), "data.txt", logger.NewDiscard().Logger)

		err := store.WriteCounter(context.Background(), []byte("0012/2025        07.11.2025.\n"))
		require.NoError(t, err)
		assert.Equal(t, "0012/2025        07.11.2025.\n", string(server.files["data.txt"]))
		assert.Equal(t, 1, server.quits)
	})

	t.Run("retries and rewinds content", func(t *testing.T) {
		server := newFakeServer()
		server.storErrs["data.txt"] = 2
		store := NewCounterStore(newTestClient(server, &sleeps{}), "data.txt", logger.NewDiscard().Logger)

		err := store.WriteCounter(context.Background(), []byte("0001/2026\n"))
		require.NoError(t, err)
		assert.Equal(t, "0001/2026\n", string(server.files["data.txt"]))
	})

	t.Run("fatal after exhausting retries", func(t *testing.T) {
		server := newFakeServer()
		server.storErrs["data.txt"] = 10
		store := NewCounterStore(newTestClient(server, &sleeps{}), "data.txt", logger.NewDiscard().Logger)

		err := store.WriteCounter(context.Background(), []byte("x"))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTransientIO)
		assert.Equal(t, 3, server.dials)
	})
}

func TestParseCounter(t *testing.T) {
	tests := []struct {
		line    string
		want    int
		wantErr bool
	}{
		{line: "10", want: 10},
		{line: "0175/2025", want: 175},
		{line: " 0007/2025        07.11.2025. ", want: 7},
		{line: "0", want: 0},
		{line: "abc", wantErr: true},
		{line: "-4/2025", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCounter(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPublisher_Publish(t *testing.T) {
	dir := t.TempDir()
	details := writeFile(t, dir, "work_order_details.html", "<div>details</div>")
	summary := writeFile(t, dir, "summary.txt", "summary")

	t.Run("uploads every artifact", func(t *testing.T) {
		server := newFakeServer()
		pub := NewPublisher(newTestClient(server, &sleeps{}), logger.NewDiscard().Logger)

		err := pub.Publish(context.Background(), []Artifact{
			{LocalPath: details, RemoteName: "work_order_details.html"},
			{LocalPath: summary, RemoteName: "summary.txt"},
		})
		require.NoError(t, err)
		assert.Equal(t, "<div>details</div>", string(server.files["work_order_details.html"]))
		assert.Equal(t, "summary", string(server.files["summary.txt"]))
	})

	t.Run("fails fast on the first exhausted artifact", func(t *testing.T) {
		server := newFakeServer()
		server.storErrs["work_order_details.html"] = 10
		pub := NewPublisher(newTestClient(server, &sleeps{}), logger.NewDiscard().Logger)

		err := pub.Publish(context.Background(), []Artifact{
			{LocalPath: details, RemoteName: "work_order_details.html"},
			{LocalPath: summary, RemoteName: "summary.txt"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrPublishFailure)
		assert.Contains(t, err.Error(), "0 of 2 uploaded")
		assert.NotContains(t, server.files, "summary.txt")
	})

	t.Run("missing local file is a failure", func(t *testing.T) {
		server := newFakeServer()
		pub := NewPublisher(newTestClient(server, &sleeps{}), logger.NewDiscard().Logger)

		err := pub.Publish(context.Background(), []Artifact{
			{LocalPath: filepath.Join(dir, "missing.html"), RemoteName: "missing.html"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrPublishFailure)
	})
}

func TestClient_SessionStopsOnCanceledContext(t *testing.T) {
	server := newFakeServer()
	server.dialErrs = 10
	client := newTestClient(server, &sleeps{})
	client.WithSleep(retry.SleepContext)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Session(ctx, "noop", func(Conn) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, server.dials)
}

func ptr(s string) *string { return &s }
