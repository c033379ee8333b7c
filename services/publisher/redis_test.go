package publisher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_stream_autoread", 10)
	defer publisher.Close()

	// Create a subscriber to verify the message was published
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	// Test if Redis is available
	_, err := client.Ping(ctx).Result()
	if err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	err = client.XGroupCreateMkStream(ctx, "test_stream_autoread", "test_group", "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		t.Fatal(err)
	}

	messages := make(chan string, 1)

	go func() {
		message, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Streams:  []string{"test_stream_autoread", ">"},
			Group:    "test_group",
			Consumer: "test_consumer",
			Block:    0,
		}).Result()
		if err != nil || len(message) == 0 || len(message[0].Messages) == 0 {
			return
		}
		messages <- message[0].Messages[0].Values["b64_report"].(string)
	}()

	time.Sleep(100 * time.Millisecond)

	err = publisher.Publish(ctx, "b64_report", []byte("test_message"))
	assert.NoError(t, err)

	select {
	case msg := <-messages:
		// The message should be base64 encoded
		assert.Equal(t, "dGVzdF9tZXNzYWdl", msg) // base64 of "test_message"
	case <-time.After(1 * time.Second):
		t.Error("Timed out waiting for message")
	}
}

func TestRedisPublisherTrim(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_stream_autoread_trim", 2)
	defer publisher.Close()

	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	for i := 0; i < 5; i++ {
		require.NoError(t, publisher.Publish(ctx, "b64_report", []byte("m")))
	}
	require.NoError(t, publisher.Trim(ctx))

	n, err := publisher.client.XLen(ctx, publisher.Stream()).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(2))

	publisher.client.Del(ctx, publisher.Stream())
}

func TestNewRedisPublisherDefaults(t *testing.T) {
	publisher := NewRedisPublisher("localhost:6379", 0, "autoread", 0)
	defer publisher.Close()

	assert.Equal(t, "autoread", publisher.Stream())
	assert.Equal(t, int64(DefaultMaxLen), publisher.maxLen)
}
