package keeper

import (
	"context"
	"fmt"
	"sync"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// ReentrancyGuard is the per-instance mutual-exclusion flag held for the
// duration of every state-mutating entry point.
type ReentrancyGuard struct {
	mu     sync.Mutex
	holder string
}

// NewReentrancyGuard creates a new guard instance.
func NewReentrancyGuard() *ReentrancyGuard {
	return &ReentrancyGuard{}
}

// Enter sets the flag or returns ErrReentrancy if it is already held.
func (g *ReentrancyGuard) Enter(operation string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder != "" {
		return types.ErrReentrancy.Wrapf("%s attempted while %s in progress", operation, g.holder)
	}
	g.holder = operation
	return nil
}

// Exit clears the flag.
func (g *ReentrancyGuard) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holder = ""
}

// Held reports the operation currently holding the guard, if any.
func (g *ReentrancyGuard) Held() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder, g.holder != ""
}

// execute runs fn as one entry point: guarded, on a cached context, and
// committed only when fn succeeds. A failed transfer inside fn therefore
// leaves no state change and no events behind.
func (k Keeper) execute(goCtx context.Context, operation string, fn func(ctx sdk.Context) error) (err error) {
	if err := k.guard.Enter(operation); err != nil {
		k.metrics.ReentrancyRejections.WithLabelValues(operation).Inc()
		return err
	}
	defer k.guard.Exit()

	defer func() {
		if r := recover(); r != nil {
			k.metrics.PanicRecoveries.Inc()
			err = fmt.Errorf("%s: panic recovered: %v", operation, r)
		}
	}()

	ctx := sdk.UnwrapSDKContext(goCtx)
	cacheCtx, write := ctx.CacheContext()
	if err := fn(cacheCtx); err != nil {
		return err
	}
	write()
	return nil
}
