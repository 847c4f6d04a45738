package lifecycle

import (
	"context"

	"heartguard-alerts/internal/domain"
)

// Result is a finished call delivered on a channel.
type Result[T any] struct {
	Value T
	Err   error
}

// Go runs fn on its own goroutine. The returned channel is buffered, receives
// exactly one Result and is then closed, so an abandoned call never blocks.
// Abandoning a call does not undo its effect at the authority.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

func (m *Manager) AcknowledgeAsync(ctx context.Context, s *Session, alert domain.Alert, actorUserID, notes string) <-chan Result[domain.Alert] {
	return Go(ctx, func(ctx context.Context) (domain.Alert, error) {
		return m.Acknowledge(ctx, s, alert, actorUserID, notes)
	})
}

func (m *Manager) ResolveAsync(ctx context.Context, s *Session, alert domain.Alert, actorUserID string, outcome domain.Outcome, notes string) <-chan Result[ResolveResult] {
	return Go(ctx, func(ctx context.Context) (ResolveResult, error) {
		return m.Resolve(ctx, s, alert, actorUserID, outcome, notes)
	})
}

func (m *Manager) CloseAsync(ctx context.Context, s *Session, alert domain.Alert, actorUserID string) <-chan Result[domain.Alert] {
	return Go(ctx, func(ctx context.Context) (domain.Alert, error) {
		return m.Close(ctx, s, alert, actorUserID)
	})
}
