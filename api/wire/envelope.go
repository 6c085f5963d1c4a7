// Package wire holds the cross-service event schema. Identifiers travel as strings,
// amounts as decimal strings and timestamps as epoch milliseconds.
package wire

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/banking/domain"
)

// Bounded context names used as envelope source and routing prefix.
const (
	ContextAccount     = "bank-account"
	ContextTransaction = "bank-transaction"
)

// Envelope wraps one serialized event.
type Envelope struct {
	ID          string          `json:"id"`
	Context     string          `json:"context"`
	Name        string          `json:"name"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  int64           `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// RoutingKey is "<context>.<event name>".
func (e Envelope) RoutingKey() string {
	return e.Context + "." + e.Name
}

// Marshal renders the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope parses raw bytes. A body that is not an envelope is a validation
// error so it can be dead-lettered instead of retried.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, domain.WrapError(domain.ErrCodeInvalid, "malformed event envelope", err)
	}
	if strings.TrimSpace(env.Context) == "" {
		return Envelope{}, domain.Invalidf("event envelope has no context")
	}
	return env, nil
}

func newEnvelope(context, name string, aggregateID domain.AggregateID, at time.Time, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, domain.WrapError(domain.ErrCodeInternal, "encode event payload", err)
	}
	return Envelope{
		ID:          uuid.NewString(),
		Context:     context,
		Name:        name,
		AggregateID: aggregateID.String(),
		OccurredAt:  Millis(at),
		Payload:     raw,
	}, nil
}

// Millis converts a timestamp to epoch milliseconds.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis is the inverse of Millis, always in UTC.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func decodePayload(env Envelope, target interface{}) (bool, error) {
	body := strings.TrimSpace(string(env.Payload))
	if body == "" || body == "null" || body == "{}" {
		return false, nil
	}
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return false, domain.WrapError(domain.ErrCodeInvalid, "malformed "+env.Name+" payload", err)
	}
	return true, nil
}
