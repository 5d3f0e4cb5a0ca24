// ruled/pkg/store/redis_store.go

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ruled/pkg/logging"
)

var ctx = context.Background()

const (
	// EffectsChannel carries serialized effect descriptions for the
	// external executor.
	EffectsChannel = "ruled:effects"
	// triggersKey is the redis list mirroring trigger history.
	triggersKey = "ruled:triggers"
	// triggersMaxLen bounds the mirrored history.
	triggersMaxLen = 100
)

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new instance of RedisStore with the given address,
// password, and database number. It establishes a connection to the Redis
// server and returns a pointer to the RedisStore.
func NewRedisStore(addr, password string, db int) *RedisStore {
	logging.Logger.Info().Str("addr", addr).Int("db", db).Msg("Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	_, err := client.Ping(ctx).Result()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	logging.Logger.Info().Msg("Successfully connected to Redis")

	return &RedisStore{client: client}
}

func (s *RedisStore) Subscribe(channels ...string) *redis.PubSub {
	logging.Logger.Info().Strs("channels", channels).Msg("Subscribing to Redis channels")

	pubsub := s.client.Subscribe(ctx, channels...)

	// Verify the subscription was successful
	_, err := pubsub.Receive(ctx)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Failed to subscribe to Redis channels")
		return nil
	}

	logging.Logger.Info().Strs("channels", channels).Msg("Successfully subscribed to Redis channels")
	return pubsub
}

// ReceiveEvents subscribes to the given event channels and returns the
// message stream.
func (s *RedisStore) ReceiveEvents(channels ...string) <-chan *redis.Message {
	pubsub := s.Subscribe(channels...)
	if pubsub == nil {
		return nil
	}
	return pubsub.Channel()
}

// PublishEffect serializes an effect description to JSON and publishes it
// on the effects channel.
func (s *RedisStore) PublishEffect(effect interface{}) error {
	data, err := json.Marshal(effect)
	if err != nil {
		logging.Logger.Error().Err(err).Interface("effect", effect).Msg("Failed to marshal effect")
		return err
	}
	if err := s.client.Publish(ctx, EffectsChannel, data).Err(); err != nil {
		logging.Logger.Error().Err(err).Str("channel", EffectsChannel).Msg("Failed to publish effect")
		return err
	}
	logging.Logger.Debug().Str("channel", EffectsChannel).Str("data", string(data)).Msg("Published effect")
	return nil
}

// PublishEvent publishes an event in the kind=payload wire form on the
// channel named after the event kind.
func (s *RedisStore) PublishEvent(kind, payload string) error {
	msg := fmt.Sprintf("%s=%s", kind, payload)
	if err := s.client.Publish(ctx, kind, msg).Err(); err != nil {
		logging.Logger.Error().Err(err).Str("kind", kind).Msg("Failed to publish event")
		return err
	}
	return nil
}

// RecordTrigger mirrors a triggered rule name to the bounded redis list.
func (s *RedisStore) RecordTrigger(ruleName string) error {
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, triggersKey, ruleName)
	pipe.LTrim(ctx, triggersKey, 0, triggersMaxLen-1)
	_, err := pipe.Exec(ctx)
	if err != nil {
		logging.Logger.Error().Err(err).Str("rule", ruleName).Msg("Failed to record trigger")
	}
	return err
}

// RecentTriggers returns the last n mirrored rule names, most recent first.
func (s *RedisStore) RecentTriggers(n int64) ([]string, error) {
	if n < 1 {
		return nil, nil
	}
	return s.client.LRange(ctx, triggersKey, 0, n-1).Result()
}
