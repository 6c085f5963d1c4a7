package usecase

import (
	"context"
	"strings"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
)

// LockProvider runs fn while holding an exclusive lock on key. Implementations release
// the lock on every exit path and fail with a LOCK_TIMEOUT domain error when the lock
// cannot be taken in time.
type LockProvider interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Publisher hands an encoded event to the transport towards the other context.
type Publisher interface {
	Publish(ctx context.Context, env wire.Envelope) error
}

// Message is one inbound delivery as seen by a consumer.
type Message struct {
	ID   string
	Body []byte
	// Attempt counts previous failed deliveries of this message.
	Attempt int
	// LastAttempt is set when a retryable failure will not be retried again.
	LastAttempt bool
}

func AccountLockKey(id domain.AggregateID) string {
	return "account:" + id.String()
}

func AccountEmailLockKey(email string) string {
	return "account-email:" + strings.ToLower(strings.TrimSpace(email))
}

func TransactionLockKey(id domain.AggregateID) string {
	return "transaction:" + id.String()
}
