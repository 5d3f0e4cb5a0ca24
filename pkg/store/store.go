// ruled/pkg/store/store.go

package store

import "github.com/redis/go-redis/v9"

// Store is the daemon's event bus and diagnostics mirror. The engine core
// never touches it; only cmd/ruled wires events in and effects out.
type Store interface {
	Subscribe(channels ...string) *redis.PubSub
	ReceiveEvents(channels ...string) <-chan *redis.Message
	PublishEffect(effect interface{}) error
	PublishEvent(kind, payload string) error
	RecordTrigger(ruleName string) error
	RecentTriggers(n int64) ([]string, error)
}
