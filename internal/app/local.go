package app

import (
	"context"
	"time"
)

// Link connects both contexts in process: each forwards its outbound channel into the
// other's inbound channel.
func Link(accounts *AccountContext, transactions *TransactionContext) {
	accounts.Pipeline.ForwardTo(transactions.Pipeline.Sink())
	transactions.Pipeline.ForwardTo(accounts.Pipeline.Sink())
}

// Settle pumps the pipelines until nothing moves for idleRounds consecutive rounds.
// Items waiting on a retry backoff count as idle, so idleRounds times pause should
// exceed the longest backoff in play.
func Settle(ctx context.Context, pause time.Duration, idleRounds int, pipelines ...*Pipeline) error {
	idle := 0
	for idle < idleRounds {
		moved := false
		for _, p := range pipelines {
			ok, err := p.Pump(ctx)
			if err != nil {
				return err
			}
			moved = moved || ok
		}
		if moved {
			idle = 0
			continue
		}
		idle++
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	return nil
}
