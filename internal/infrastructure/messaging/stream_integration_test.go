//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestImportJobRoundTrip(t *testing.T) {
	client := startRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	producer := NewProducer(client, 1000)
	consumer := NewConsumer(client, ConsumerConfig{
		Stream:       StreamStoryImport,
		Group:        ConsumerGroupImportWorker,
		ConsumerName: "test-worker",
		BlockTimeout: 200 * time.Millisecond,
	})

	received := make(chan ImportJobMessage, 1)
	consumer.RegisterHandler(MessageTypeImportStory, func(ctx context.Context, msg *Message) error {
		var job ImportJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		received <- job
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	_, err := producer.PublishImportJob(ctx, &ImportJobMessage{
		JobID:  "job-1",
		Mode:   ImportModeStory,
		Bundle: json.RawMessage(`{"story":{"title":"Ashfall"}}`),
	})
	require.NoError(t, err)

	select {
	case job := <-received:
		assert.Equal(t, "job-1", job.JobID)
		assert.JSONEq(t, `{"story":{"title":"Ashfall"}}`, string(job.Bundle))
	case <-ctx.Done():
		t.Fatal("job was not consumed")
	}

	consumer.Stop()
	cancel()
	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestPublishImportCompleted(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	producer := NewProducer(client, 1000)
	_, err := producer.PublishImportCompleted(ctx, &ImportCompletedMessage{
		JobID:   "job-2",
		Mode:    ImportModeEntities,
		Success: true,
		StoryID: "s1",
	})
	require.NoError(t, err)

	entries, err := client.XRange(ctx, string(StreamStoryEvents), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &msg))
	assert.Equal(t, MessageTypeImportCompleted, msg.Type)
	assert.Equal(t, "s1", msg.StoryID)
	assert.Equal(t, "true", msg.GetMetadata("success"))
}
