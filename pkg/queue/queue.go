package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the producer side of the queue, what use cases hold to
// enqueue work.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig contains the configuration for the queue.
type QueueConfig struct {
	Workers    int           // concurrent job workers
	QueueSize  int           // max pending messages, 0 for unbounded
	RetryLimit int           // attempts before a message is dead-lettered
	RetryDelay time.Duration // delay before a failed message is retried
}

func (c *QueueConfig) normalize() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string
	Type      string      // routes to the job registered under this name
	Payload   interface{} // JSON-serializable body
	Attempts  int         // deliveries so far, carried across retries
	Timestamp time.Time
}

// ParsePayload converts a payload back into its concrete type. Payloads
// arrive as json.RawMessage after a queue round trip but may be passed
// directly when a job is invoked in process.
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		return decodePayload[T](p)
	case map[string]interface{}, []interface{}:
		// Generic JSON from an interface{} hop re-encodes to reach T.
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("re-encode payload: %w", err)
		}
		return decodePayload[T](b)
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}
}

func decodePayload[T any](b []byte) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
