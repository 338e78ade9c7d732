package confirm

import (
	"context"
	"sync"
)

// Gate admits one confirmation conversation at a time on a chat.
// Replies are acknowledged through a shared offset, so two open prompts
// would drain or consume each other's answers.
type Gate struct {
	once sync.Once
	slot chan struct{}
}

// Acquire blocks until the chat is free or ctx is done. The returned func releases it.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	g.once.Do(func() { g.slot = make(chan struct{}, 1) })

	select {
	case g.slot <- struct{}{}:
		return g.release, nil
	default:
	}

	select {
	case g.slot <- struct{}{}:
		return g.release, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Gate) release() {
	<-g.slot
}
