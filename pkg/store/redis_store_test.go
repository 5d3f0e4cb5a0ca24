// ruled/pkg/store/redis_store_test.go

package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	store := NewRedisStore(s.Addr(), "", 0)
	return s, store
}

func TestRecordAndRecentTriggers(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	assert.NoError(t, store.RecordTrigger("onboard"))
	assert.NoError(t, store.RecordTrigger("refactor"))
	assert.NoError(t, store.RecordTrigger("review"))

	triggers, err := store.RecentTriggers(2)
	assert.NoError(t, err)
	assert.Equal(t, []string{"review", "refactor"}, triggers)

	all, err := store.RecentTriggers(10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"review", "refactor", "onboard"}, all)
}

func TestRecentTriggersBounded(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	for i := 0; i < triggersMaxLen+20; i++ {
		assert.NoError(t, store.RecordTrigger(fmt.Sprintf("rule-%d", i)))
	}

	all, err := store.RecentTriggers(int64(triggersMaxLen + 20))
	assert.NoError(t, err)
	assert.Len(t, all, triggersMaxLen)
	assert.Equal(t, fmt.Sprintf("rule-%d", triggersMaxLen+19), all[0])
}

func TestRecentTriggersZero(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	triggers, err := store.RecentTriggers(0)
	assert.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestPublishEffect(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	pubsub := client.Subscribe(ctx, EffectsChannel)
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)
	defer pubsub.Close()

	effect := map[string]interface{}{
		"effect_kind": "message",
		"content":     "Project onboarding complete!",
	}
	assert.NoError(t, store.PublishEffect(effect))

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, EffectsChannel, msg.Channel)
		assert.Contains(t, msg.Payload, "Project onboarding complete!")
	case <-time.After(2 * time.Second):
		t.Fatal("expected an effect message")
	}
}

func TestPublishAndReceiveEvent(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	events := store.ReceiveEvents("command")
	require.NotNil(t, events)

	assert.NoError(t, store.PublishEvent("command", "onboard project"))

	select {
	case msg := <-events:
		assert.Equal(t, "command", msg.Channel)
		assert.Equal(t, "command=onboard project", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an event message")
	}
}

func TestSubscribeMultipleChannels(t *testing.T) {
	s, store := setupMiniredis(t)
	defer s.Close()

	pubsub := store.Subscribe("command", "file_change", "lifecycle")
	require.NotNil(t, pubsub)
	defer pubsub.Close()

	assert.NoError(t, store.PublishEvent("lifecycle", "session.start"))

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, "lifecycle", msg.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a lifecycle message")
	}
}
