package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sjsage522/autoread/config"
	"sjsage522/autoread/internal/browser/browsertest"
	"sjsage522/autoread/internal/forum"
	"sjsage522/autoread/internal/notify"
	"sjsage522/autoread/services/visited"
	"sjsage522/autoread/services/worker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStats mimics the Connect page
const testStats = `
<!DOCTYPE html>
<html>
<body>
    <table>
        <tr><th>项目</th><th>当前</th><th>要求</th></tr>
        <tr><td>访问次数</td><td>12</td><td>50</td></tr>
        <tr><td>回复的话题</td><td>2</td><td>10</td></tr>
    </table>
</body>
</html>
`

func testForum() *browsertest.Browser {
	site := forum.DefaultSite()
	fb := browsertest.New()
	fb.Serve(site.HomeURL, &browsertest.PageSpec{})
	fb.SetElements(site.HomeURL, forum.SelectorCurrentUser, &browsertest.Element{})
	fb.Serve(site.ConnectURL, &browsertest.PageSpec{HTML: testStats})
	fb.Serve(site.LatestURL, &browsertest.PageSpec{})
	fb.SetElements(site.LatestURL, "a.raw-topic-link",
		browsertest.Link("/t/topic/100", "Welcome"),
		browsertest.Link("/t/topic/101", "Rules"),
	)
	fb.Serve("https://linux.do/t/topic/100", &browsertest.PageSpec{BottomAfter: 1})
	fb.Serve("https://linux.do/t/topic/101", &browsertest.PageSpec{BottomAfter: 1})
	return fb
}

func TestIntegration(t *testing.T) {
	// Skip this test if running in CI or without Redis
	if os.Getenv("CI") != "" {
		t.Skip("Skipping integration test in CI environment")
	}

	ctx := context.Background()

	redisAddr := "localhost:6379"
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   0,
	})
	defer redisClient.Close()

	// Check if Redis is available by attempting a ping, skip test if not
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		t.Skip("Redis is not available, skipping integration test")
	}

	testStream := "test_stream_autoread_integration"
	redisClient.Del(ctx, testStream)
	defer redisClient.Del(ctx, testStream)

	var (
		mu       sync.Mutex
		gotified []string
	)
	gotify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotified = append(gotified, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gotify.Close()

	notifier := notify.Setup(config.NotificationsConfig{
		Title:  "LINUX DO",
		Gotify: config.GotifyConfig{URL: gotify.URL, Token: "integration"},
		Redis:  config.RedisConfig{Addr: redisAddr, Stream: testStream, MaxLen: 10},
	}, notify.Deps{})
	defer notifier.Close()

	store, closer, err := visited.Open(config.VisitedConfig{
		Backend: "file",
		Path:    filepath.Join(t.TempDir(), "visited_topics.txt"),
	})
	require.NoError(t, err)
	defer closer.Close()

	browse := forum.DefaultBrowseOptions()
	browse.LikeProbability = 0
	browse.EarlyExitProbability = 0
	browse.ScrollWaitMin, browse.ScrollWaitMax = time.Millisecond, time.Millisecond

	w := worker.NewWorker(testForum(), notifier, store, worker.Options{
		Site:          forum.DefaultSite(),
		Credentials:   forum.Credentials{Username: "alice", Password: "secret"},
		BrowseEnabled: true,
		MaxTopics:     30,
		Browse:        browse,
	})
	w.Out = io.Discard

	res, err := w.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, worker.StateDone, res.State)
	assert.Len(t, res.Visited, 2)
	assert.Equal(t, map[int]bool{0: true, 1: true}, res.Deliveries)

	mu.Lock()
	assert.Len(t, gotified, 1)
	mu.Unlock()

	entries, err := redisClient.XRange(ctx, testStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	encoded, ok := entries[0].Values[notify.ReportKey].(string)
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var report notify.Report
	require.NoError(t, json.Unmarshal(decoded, &report))
	assert.Equal(t, worker.MessageLoginSucceeded+worker.MessageBrowseFinished, report.Message)

	// a second run finds nothing new to read
	res, err = w.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Visited)
}
