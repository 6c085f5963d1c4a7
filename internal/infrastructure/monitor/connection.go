package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/banking/internal/infrastructure/buffer"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger wraps the go-redis ping so the monitor needs no client type.
type RedisPinger func(ctx context.Context) error

type Monitor struct {
	pg       Pinger
	redis    RedisPinger
	channels []*buffer.Channel

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// New builds a monitor. A nil pg means the service runs on in-memory storage.
func New(pg Pinger, redis RedisPinger, channels []*buffer.Channel, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		channels: channels,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the lock store and, when configured, postgres answer.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Redis && (m.pg == nil || m.status.PostgreSQL)
}

// Watch adds channels to the size report.
func (m *Monitor) Watch(channels ...*buffer.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channels...)
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh()
	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once.
func (m *Monitor) Refresh() {
	status := Status{
		PostgreSQL: m.checkPostgres(),
		Redis:      m.checkRedis(),
		Channels:   m.checkChannels(m.watched()),
		LastCheck:  time.Now(),
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) checkPostgres() bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) checkRedis() bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.redis(ctx) == nil
}

func (m *Monitor) watched() []*buffer.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*buffer.Channel(nil), m.channels...)
}

func (m *Monitor) checkChannels(channels []*buffer.Channel) map[string]int {
	sizes := make(map[string]int, len(channels))
	for _, ch := range channels {
		size, err := ch.Size()
		if err != nil {
			m.logger.Warn("channel size check failed", zap.String("channel", ch.Name()), zap.Error(err))
			size = -1
		}
		sizes[ch.Name()] = size
	}
	return sizes
}
