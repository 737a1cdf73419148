package importjob

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-graph-api/internal/application/storyimport"
	"novel-graph-api/internal/domain/entity"
	"novel-graph-api/internal/infrastructure/messaging"
	"novel-graph-api/internal/infrastructure/persistence/sqlite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*messaging.ImportCompletedMessage
	err    error
}

func (p *recordingPublisher) PublishImportCompleted(_ context.Context, event *messaging.ImportCompletedMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "1-0", nil
}

type registry map[string]messaging.MessageHandler

func (r registry) RegisterHandler(msgType string, handler messaging.MessageHandler) {
	r[msgType] = handler
}

func setup(t *testing.T) (*Handler, *recordingPublisher, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	pub := &recordingPublisher{}
	return NewHandler(storyimport.NewImporter(store), pub), pub, store
}

func jobMessage(t *testing.T, job messaging.ImportJobMessage) *messaging.Message {
	t.Helper()
	msgType := messaging.MessageTypeImportStory
	if job.Mode == messaging.ImportModeEntities {
		msgType = messaging.MessageTypeImportEntities
	}
	msg, err := messaging.NewMessage(job.JobID, msgType, job.StoryID, job)
	require.NoError(t, err)
	return msg
}

func TestHandleStory(t *testing.T) {
	h, pub, store := setup(t)
	handlers := registry{}
	h.Register(handlers)
	require.Contains(t, handlers, messaging.MessageTypeImportStory)

	msg := jobMessage(t, messaging.ImportJobMessage{
		JobID:  "job-1",
		Mode:   messaging.ImportModeStory,
		Bundle: json.RawMessage(`{"story":{"title":"Ashfall"},"characters":[{"name":"Vex"}]}`),
	})
	require.NoError(t, handlers[messaging.MessageTypeImportStory](context.Background(), msg))

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.True(t, event.Success)
	assert.Equal(t, "job-1", event.JobID)
	assert.NotEmpty(t, event.StoryID)

	var result storyimport.ImportResult
	require.NoError(t, json.Unmarshal(event.Result, &result))
	assert.Equal(t, 1, result.Counts[storyimport.StageCharacters])

	rows, err := store.Select(context.Background(), entity.TableCharacters, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestHandleStory_FailureIsReportedNotRetried(t *testing.T) {
	h, pub, _ := setup(t)

	msg := jobMessage(t, messaging.ImportJobMessage{
		JobID:  "job-2",
		Mode:   messaging.ImportModeStory,
		Bundle: json.RawMessage(`{"characters":[{"name":"Vex"}]}`),
	})
	require.NoError(t, h.HandleStory(context.Background(), msg))
	require.Len(t, pub.events, 1)
	assert.False(t, pub.events[0].Success)
	assert.Contains(t, pub.events[0].Error, "story stage failed")
}

func TestHandleEntities(t *testing.T) {
	h, pub, store := setup(t)

	msg := jobMessage(t, messaging.ImportJobMessage{
		JobID:   "job-3",
		Mode:    messaging.ImportModeEntities,
		StoryID: "s1",
		Records: json.RawMessage(`[{"name":"Vex","role":"protagonist"}]`),
	})
	require.NoError(t, h.HandleEntities(context.Background(), msg))
	require.Len(t, pub.events, 1)
	assert.True(t, pub.events[0].Success)
	assert.Equal(t, "s1", pub.events[0].StoryID)

	rows, err := store.Select(context.Background(), entity.TableCharacters, entity.Filter{"story_id": "s1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPublishFailureIsRetried(t *testing.T) {
	h, pub, _ := setup(t)
	pub.err = errors.New("redis down")

	msg := jobMessage(t, messaging.ImportJobMessage{
		JobID:  "job-4",
		Mode:   messaging.ImportModeStory,
		Bundle: json.RawMessage(`{"story":{"title":"Ashfall"}}`),
	})
	err := h.HandleStory(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	h, pub, _ := setup(t)

	msg := &messaging.Message{ID: "m1", Type: messaging.MessageTypeImportStory, Payload: json.RawMessage(`"nope"`)}
	assert.NoError(t, h.HandleStory(context.Background(), msg))
	assert.Empty(t, pub.events)
}
