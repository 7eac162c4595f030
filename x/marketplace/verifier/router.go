package verifier

import (
	"math/big"
	"sort"
	"sync"

	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

// Names of the verifiers registered by default.
const (
	NameGroth16 = "groth16"
	NameMock    = "mock"
)

// MockVerifier accepts any non-empty proof. It stands in for a real verifier on devnets.
type MockVerifier struct{}

// Verify implements types.ProofVerifier.
func (MockVerifier) Verify(_ []*big.Int, proof []byte) (bool, error) {
	return len(proof) > 0, nil
}

// Router resolves verifier names to implementations.
type Router struct {
	mu        sync.RWMutex
	verifiers map[string]types.ProofVerifier
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{verifiers: make(map[string]types.ProofVerifier)}
}

// Register adds or replaces a named verifier.
func (r *Router) Register(name string, v types.ProofVerifier) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[name] = v
	return r
}

// Get returns the verifier registered under name.
func (r *Router) Get(name string) (types.ProofVerifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verifiers[name]
	return v, ok
}

// Names lists registered verifiers in sorted order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.verifiers))
	for name := range r.verifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
