package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/banking/api/wire"
	"github.com/fastygo/banking/domain"
	"github.com/fastygo/banking/domain/account"
	"github.com/fastygo/banking/internal/infrastructure/buffer"
	"github.com/fastygo/banking/internal/metrics"
	"github.com/fastygo/banking/repository"
	"github.com/fastygo/banking/repository/memory"
	"github.com/fastygo/banking/usecase"
)

func openChannels(t *testing.T) (*buffer.Channel, *buffer.Channel) {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "channels.db"), buffer.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	src, err := store.Channel("test.persistence.inbound.channel")
	require.NoError(t, err)
	dead, err := store.Channel("test.persistence.deadletter.channel")
	require.NoError(t, err)
	return src, dead
}

type recorder struct {
	mu   sync.Mutex
	seen []usecase.Message
	fail func(msg usecase.Message) error
}

func (r *recorder) Consume(_ context.Context, msg usecase.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg)
	if r.fail != nil {
		return r.fail(msg)
	}
	return nil
}

func (r *recorder) bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	for i, msg := range r.seen {
		out[i] = string(msg.Body)
	}
	return out
}

type offline struct{}

func (offline) IsOnline() bool { return false }

func processorConfig() ProcessorConfig {
	return ProcessorConfig{
		Interval:    time.Hour,
		BatchSize:   10,
		Workers:     2,
		MaxRetries:  3,
		BackoffBase: time.Second,
		BackoffMax:  4 * time.Second,
	}
}

func TestProcessorRemovesHandledItems(t *testing.T) {
	src, dead := openChannels(t)
	for _, body := range []string{"1", "2", "3"} {
		require.NoError(t, src.Enqueue(buffer.Item{Key: "acc-1", Data: []byte(body)}))
	}
	rec := &recorder{}
	m := metrics.New()
	p := NewChannelProcessor(src, dead, rec, nil, m, nil, processorConfig())

	n, err := p.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"1", "2", "3"}, rec.bodies())
	assert.Zero(t, p.Size())
}

func TestProcessorSkipsWhileOffline(t *testing.T) {
	src, dead := openChannels(t)
	require.NoError(t, src.Enqueue(buffer.Item{Key: "k", Data: []byte("x")}))
	rec := &recorder{}
	p := NewChannelProcessor(src, dead, rec, offline{}, nil, nil, processorConfig())

	n, err := p.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rec.bodies())
	assert.Equal(t, 1, p.Size())
}

func TestProcessorRetriesWithBackoffAndKeepsKeyOrder(t *testing.T) {
	src, dead := openChannels(t)
	require.NoError(t, src.Enqueue(buffer.Item{Key: "acc-1", Data: []byte("first")}))
	require.NoError(t, src.Enqueue(buffer.Item{Key: "acc-1", Data: []byte("second")}))
	require.NoError(t, src.Enqueue(buffer.Item{Key: "acc-2", Data: []byte("other")}))

	rec := &recorder{fail: func(msg usecase.Message) error {
		if string(msg.Body) == "first" {
			return domain.ErrLockTimeout
		}
		return nil
	}}
	p := NewChannelProcessor(src, dead, rec, nil, nil, nil, processorConfig())
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	n, err := p.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.ElementsMatch(t, []string{"first", "other"}, rec.bodies())
	assert.Equal(t, 2, p.Size())

	// Still backing off: nothing for acc-1 is handed out.
	n, err = p.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	items, err := src.GetBatch(10, clock.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", string(items[0].Data))
	assert.Equal(t, 1, items[0].Retries)
	assert.Equal(t, clock.Add(time.Second), items[0].NotBefore)
	assert.Contains(t, items[0].LastError, "lock not acquired")
}

func TestProcessorDeadLettersExhaustedAndTerminalItems(t *testing.T) {
	src, dead := openChannels(t)
	require.NoError(t, src.Enqueue(buffer.Item{Key: "a", Data: []byte("retryable")}))
	require.NoError(t, src.Enqueue(buffer.Item{Key: "b", Data: []byte("terminal")}))

	rec := &recorder{fail: func(msg usecase.Message) error {
		if string(msg.Body) == "terminal" {
			return domain.ErrInvalidPayload
		}
		return domain.ErrAccountNotFound
	}}
	cfg := processorConfig()
	cfg.Workers = 1
	p := NewChannelProcessor(src, dead, rec, nil, nil, nil, cfg)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	for i := 0; i < cfg.MaxRetries; i++ {
		_, err := p.Drain(context.Background())
		require.NoError(t, err)
		clock = clock.Add(time.Minute)
	}

	assert.Zero(t, p.Size())
	size, err := dead.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	var attempts []usecase.Message
	for _, msg := range rec.seen {
		if string(msg.Body) == "retryable" {
			attempts = append(attempts, msg)
		}
	}
	require.Len(t, attempts, cfg.MaxRetries)
	assert.False(t, attempts[0].LastAttempt)
	assert.True(t, attempts[cfg.MaxRetries-1].LastAttempt)
	assert.Equal(t, cfg.MaxRetries-1, attempts[cfg.MaxRetries-1].Attempt)
}

func TestProcessorBackoffIsCapped(t *testing.T) {
	src, dead := openChannels(t)
	p := NewChannelProcessor(src, dead, &recorder{}, nil, nil, nil, processorConfig())
	assert.Equal(t, time.Second, p.backoff(1))
	assert.Equal(t, 2*time.Second, p.backoff(2))
	assert.Equal(t, 4*time.Second, p.backoff(3))
	assert.Equal(t, 4*time.Second, p.backoff(10))
}

func TestProcessorStartStop(t *testing.T) {
	src, dead := openChannels(t)
	p := NewChannelProcessor(src, dead, &recorder{}, nil, nil, nil, processorConfig())
	p.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, p.Stop(ctx))
}

func accountOutbox(t *testing.T) *memory.AccountStore {
	t.Helper()
	store := memory.NewAccountStore()
	agg := account.NewAggregate(account.BankAccount{})
	require.NoError(t, agg.Handle(account.CreateAccount{
		AccountID: domain.AggregateID("acc-1"),
		Email:     "a@bank.test",
		Balance:   decimal.RequireFromString("10"),
	}, time.Now()))
	_, err := store.Upsert(context.Background(), agg)
	require.NoError(t, err)
	return store
}

func TestOutboxRelayMovesPendingMessages(t *testing.T) {
	store := accountOutbox(t)
	outbound, _ := openChannels(t)
	relay := NewOutboxRelay(store.Outbox(), outbound, time.Hour, 10, nil)

	n, err := relay.Relay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.Outbox().Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	items, err := outbound.GetBatch(10, time.Now())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "acc-1", items[0].Key)
	assert.Equal(t, wire.ContextAccount+"."+account.EventAccountCreated, items[0].Name)

	env, err := wire.UnmarshalEnvelope(items[0].Data)
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, env.ID)

	n, err = relay.Relay(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type failingOutbox struct{ repository.OutboxRepository }

func (failingOutbox) Pending(context.Context, int) ([]repository.OutboxMessage, error) {
	return nil, errors.New("db down")
}

func TestOutboxRelayPropagatesReadErrors(t *testing.T) {
	outbound, _ := openChannels(t)
	relay := NewOutboxRelay(failingOutbox{}, outbound, time.Hour, 10, nil)
	_, err := relay.Relay(context.Background())
	assert.EqualError(t, err, "db down")
}

type transport struct {
	err  error
	sent []wire.Envelope
}

func (tr *transport) Publish(_ context.Context, env wire.Envelope) error {
	if tr.err != nil {
		return tr.err
	}
	tr.sent = append(tr.sent, env)
	return nil
}

func TestForwarderPublishesEnvelope(t *testing.T) {
	env := wire.Envelope{ID: "evt-1", Context: wire.ContextAccount, Name: account.EventMoneyDeposited, AggregateID: "acc-1"}
	body, err := env.Marshal()
	require.NoError(t, err)

	tr := &transport{}
	m := metrics.New()
	f := NewForwarder(wire.ContextAccount, tr, m, nil)
	require.NoError(t, f.Consume(context.Background(), usecase.Message{Body: body}))
	require.Len(t, tr.sent, 1)
	assert.Equal(t, "bank-account.account.money_deposited", tr.sent[0].RoutingKey())

	tr.err = errors.New("broker unavailable")
	err = f.Consume(context.Background(), usecase.Message{Body: body})
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))

	err = f.Consume(context.Background(), usecase.Message{Body: []byte("garbage")})
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
}

func TestChannelPublisherAcceptsDeliveries(t *testing.T) {
	ch, _ := openChannels(t)
	p := NewChannelPublisher(ch)
	env := wire.Envelope{ID: "evt-1", Context: wire.ContextTransaction, Name: "transaction.created", AggregateID: "tx-1"}
	body, err := env.Marshal()
	require.NoError(t, err)

	require.NoError(t, p.Accept(context.Background(), body))
	require.NoError(t, p.Accept(context.Background(), []byte("???")))

	items, err := ch.GetBatch(10, time.Now())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "evt-1", items[0].ID)
	assert.Equal(t, "tx-1", items[0].Key)
	assert.Equal(t, env.RoutingKey(), items[0].Name)
	assert.Equal(t, "malformed", items[1].Name)
	assert.Equal(t, "???", string(items[1].Data))
}
