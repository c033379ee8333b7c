package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sjsage522/autoread/config"
	"sjsage522/autoread/logger"
	taskerrors "sjsage522/autoread/pkg/errors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name   string
	result bool
	calls  int
	last   SendOptions
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, _ string, opts ...SendOption) bool {
	f.calls++
	f.last = buildOptions(opts)
	return f.result
}

type fakePublisher struct {
	mu       sync.Mutex
	key      string
	messages [][]byte
	err      error
	trims    int
	closed   bool
}

func (p *fakePublisher) Publish(_ context.Context, key string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.key = key
	p.messages = append(p.messages, message)
	return nil
}

func (p *fakePublisher) Trim(context.Context) error {
	p.trims++
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestSendAll(t *testing.T) {
	failing := &fakeChannel{name: "a", result: false}
	working := &fakeChannel{name: "b", result: true}
	m := NewManager(failing, working)

	results := m.SendAll(context.Background(), "hello", WithTitle("T"), WithPriority(5))
	assert.Equal(t, map[int]bool{0: false, 1: true}, results)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, working.calls)
	assert.Equal(t, SendOptions{Title: "T", Priority: 5}, working.last)
}

func TestSendAllEmpty(t *testing.T) {
	assert.Empty(t, NewManager().SendAll(context.Background(), "hello"))
}

func TestBuildOptionsDefaults(t *testing.T) {
	assert.Equal(t, SendOptions{Title: DefaultTitle, Priority: DefaultPriority}, buildOptions(nil))
	assert.Equal(t, DefaultTitle, buildOptions([]SendOption{WithTitle("")}).Title)
}

func TestGotifySend(t *testing.T) {
	var got gotifyMessage
	var token, path, method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		token = r.URL.Query().Get("token")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	g := NewGotify(server.URL+"/", "app-token", nil)
	ok := g.Send(context.Background(), "✅每日登录成功")

	assert.True(t, ok)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/message", path)
	assert.Equal(t, "app-token", token)
	assert.Equal(t, gotifyMessage{Title: "LINUX DO", Message: "✅每日登录成功", Priority: 1}, got)
}

func TestGotifyRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	g := NewGotify(server.URL, "t", NewHTTPClient(time.Second))
	g.Policy.Delay = 0

	assert.False(t, g.Send(context.Background(), "msg"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClientLogsBodyAtDebug(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":42}`))
	}))
	defer server.Close()

	prev, prevLevel := logger.Default, zerolog.GlobalLevel()
	defer func() {
		logger.Default = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	for _, level := range []zerolog.Level{zerolog.InfoLevel, zerolog.DebugLevel} {
		var buf bytes.Buffer
		logger.Default = logger.New(&buf, level)

		_, err := NewHTTPClient(time.Second).R().Get(server.URL)
		require.NoError(t, err)
		if level == zerolog.DebugLevel {
			assert.Contains(t, buf.String(), `"body":"{\"id\":42}"`)
			assert.Contains(t, buf.String(), `"status":200`)
		} else {
			assert.Empty(t, buf.String())
		}
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
}

func TestParseKey(t *testing.T) {
	uid, err := ParseKey("sct123456tABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "123456", uid)

	uid, err = ParseKey("SCT42Txyz")
	require.NoError(t, err)
	assert.Equal(t, "42", uid)

	for _, bad := range []string{"badkey", "", "sctt", "xsct1t", "SCU123t"} {
		_, err := ParseKey(bad)
		require.Error(t, err, bad)
		assert.True(t, taskerrors.Is(err, taskerrors.ErrorTypeInvalidCredentialFormat), bad)
	}
}

func serverChanServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32, *http.Request) {
	t.Helper()
	var calls atomic.Int32
	last := &http.Request{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		*last = *r.Clone(context.Background())
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	t.Cleanup(server.Close)
	return server, &calls, last
}

func TestServerChanSend(t *testing.T) {
	server, calls, last := serverChanServer(t, http.StatusOK)

	var gotUID string
	s := NewServerChan("sct123456tKEY", nil, time.Millisecond, time.Millisecond)
	s.Endpoint = func(uid string) string {
		gotUID = uid
		return server.URL
	}

	assert.True(t, s.Send(context.Background(), "body", WithTitle("title")))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "123456", gotUID)
	assert.Equal(t, http.MethodGet, last.Method)
	assert.Equal(t, "/send/sct123456tKEY", last.URL.Path)
	assert.Equal(t, "title", last.URL.Query().Get("title"))
	assert.Equal(t, "body", last.URL.Query().Get("desp"))
}

func TestServerChanBadKeyMakesNoCalls(t *testing.T) {
	server, calls, _ := serverChanServer(t, http.StatusOK)

	s := NewServerChan("badkey", nil, time.Millisecond, time.Millisecond)
	s.Endpoint = func(string) string { return server.URL }

	assert.False(t, s.Send(context.Background(), "body"))
	assert.Zero(t, calls.Load())
}

func TestServerChanRetries(t *testing.T) {
	server, calls, _ := serverChanServer(t, http.StatusBadGateway)

	s := NewServerChan("sct1t", nil, time.Millisecond, time.Millisecond)
	s.Endpoint = func(string) string { return server.URL }
	var waits []time.Duration
	s.Policy.Backoff = func(attempt int) time.Duration {
		waits = append(waits, time.Duration(attempt))
		return 0
	}

	assert.False(t, s.Send(context.Background(), "body"))
	assert.Equal(t, int32(DefaultServerChanAttempts), calls.Load())
	assert.Len(t, waits, DefaultServerChanAttempts-1)
}

func TestRandomBackoffRange(t *testing.T) {
	backoff := RandomBackoff(nil, DefaultServerChanRetryMin, DefaultServerChanRetryMax)
	for i := 1; i < 50; i++ {
		d := backoff(i)
		assert.GreaterOrEqual(t, d, DefaultServerChanRetryMin)
		assert.LessOrEqual(t, d, DefaultServerChanRetryMax)
	}
}

func TestStreamSend(t *testing.T) {
	pub := &fakePublisher{}
	s := NewStream(pub)
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.True(t, s.Send(context.Background(), "done", WithPriority(3)))
	require.Len(t, pub.messages, 1)
	assert.Equal(t, ReportKey, pub.key)
	assert.Equal(t, 1, pub.trims)

	var report Report
	require.NoError(t, json.Unmarshal(pub.messages[0], &report))
	assert.Equal(t, Report{Title: "LINUX DO", Message: "done", Priority: 3, SentAt: s.now()}, report)

	pub.err = errors.New("connection refused")
	assert.False(t, s.Send(context.Background(), "again"))
}

func TestSetup(t *testing.T) {
	cfg := config.NotificationsConfig{
		Gotify:     config.GotifyConfig{URL: "https://push.example.com", Token: "t"},
		ServerChan: config.ServerChanConfig{PushKey: "sct1tabc"},
	}
	m := Setup(cfg, Deps{})
	assert.Equal(t, []string{"gotify", "serverchan"}, m.Names())

	cfg.Gotify.Token = ""
	cfg.ServerChan.PushKey = ""
	m = Setup(cfg, Deps{})
	assert.Zero(t, m.Len())

	pub := &fakePublisher{}
	m = Setup(cfg, Deps{Publisher: pub})
	assert.Equal(t, []string{"redis"}, m.Names())
	require.NoError(t, m.Close())
	assert.False(t, pub.closed, "injected publishers belong to the caller")
}

func TestSetupOwnsRedisPublisher(t *testing.T) {
	cfg := config.NotificationsConfig{Redis: config.RedisConfig{Addr: "localhost:6379", Stream: "autoread"}}
	m := Setup(cfg, Deps{})
	assert.Equal(t, []string{"redis"}, m.Names())
	assert.NoError(t, m.Close())
}
