package verifier

import (
	"bytes"
	"math/big"
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"
)

var (
	proverOnce sync.Once
	prover     *Prover
	proverErr  error
)

func sharedProver(t *testing.T) *Prover {
	t.Helper()
	proverOnce.Do(func() {
		prover, proverErr = NewProver()
	})
	require.NoError(t, proverErr)
	return prover
}

func testWeights() [WeightCount]*big.Int {
	var w [WeightCount]*big.Int
	for i := range w {
		w[i] = big.NewInt(int64(1000 + i*17))
	}
	return w
}

func TestResultCircuitSolving(t *testing.T) {
	weights := testWeights()
	salt := big.NewInt(424242)
	digest := ModelDigest(7, salt, weights)

	valid := &ResultCircuit{JobID: 7, ModelDigest: digest, Salt: salt}
	for i, w := range weights {
		valid.Weights[i] = w
	}
	assert := test.NewAssert(t)
	assert.SolvingSucceeded(new(ResultCircuit), valid, test.WithCurves(ecc.BN254))

	// Same witness under another job id must not satisfy the circuit.
	replayed := *valid
	replayed.JobID = 8
	assert.SolvingFailed(new(ResultCircuit), &replayed, test.WithCurves(ecc.BN254))
}

func TestModelDigestDeterministic(t *testing.T) {
	weights := testWeights()
	a := ModelDigest(1, big.NewInt(5), weights)
	b := ModelDigest(1, big.NewInt(5), weights)
	require.Equal(t, 0, a.Cmp(b))

	c := ModelDigest(2, big.NewInt(5), weights)
	require.NotEqual(t, 0, a.Cmp(c))

	weights[3] = big.NewInt(1)
	d := ModelDigest(1, big.NewInt(5), weights)
	require.NotEqual(t, 0, a.Cmp(d))
}

func TestGroth16ProveAndVerify(t *testing.T) {
	p := sharedProver(t)
	v := p.Verifier()

	proof, inputs, err := p.Prove(11, big.NewInt(99), testWeights())
	require.NoError(t, err)
	require.Len(t, inputs, PublicInputCount)
	require.Equal(t, int64(11), inputs[0].Int64())

	ok, err := v.Verify(inputs, proof)
	require.NoError(t, err)
	require.True(t, ok)

	// Wrong digest
	bad := []*big.Int{inputs[0], new(big.Int).Add(inputs[1], big.NewInt(1))}
	ok, err = v.Verify(bad, proof)
	require.NoError(t, err)
	require.False(t, ok)

	// Replay against another job
	ok, err = v.Verify([]*big.Int{big.NewInt(12), inputs[1]}, proof)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGroth16VerifyRejectsMalformedInput(t *testing.T) {
	p := sharedProver(t)
	v := p.Verifier()

	proof, inputs, err := p.Prove(3, big.NewInt(1), testWeights())
	require.NoError(t, err)

	_, err = v.Verify(inputs[:1], proof)
	require.Error(t, err)

	_, err = v.Verify([]*big.Int{inputs[0], ecc.BN254.ScalarField()}, proof)
	require.Error(t, err)

	ok, _ := v.Verify(inputs, []byte{0x01, 0x02})
	require.False(t, ok)

	ok, _ = v.Verify(inputs, nil)
	require.False(t, ok)
}

func TestVerifyingKeyRoundTrip(t *testing.T) {
	p := sharedProver(t)

	var buf bytes.Buffer
	require.NoError(t, p.WriteVerifyingKey(&buf))

	loaded, err := LoadGroth16Verifier(&buf)
	require.NoError(t, err)

	proof, inputs, err := p.Prove(5, big.NewInt(8), testWeights())
	require.NoError(t, err)
	ok, err := loaded.Verify(inputs, proof)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = LoadGroth16Verifier(bytes.NewReader([]byte("not a key")))
	require.Error(t, err)
}

func TestProverRoundTrip(t *testing.T) {
	p := sharedProver(t)

	var pk, vk bytes.Buffer
	require.NoError(t, p.WriteProvingKey(&pk))
	require.NoError(t, p.WriteVerifyingKey(&vk))

	loaded, err := LoadProver(&pk, &vk)
	require.NoError(t, err)

	proof, inputs, err := loaded.Prove(11, big.NewInt(3), testWeights())
	require.NoError(t, err)
	ok, err := p.Verifier().Verify(inputs, proof)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRouter(t *testing.T) {
	r := NewRouter().Register(NameMock, MockVerifier{})

	v, ok := r.Get(NameMock)
	require.True(t, ok)
	accepted, err := v.Verify(nil, []byte{1})
	require.NoError(t, err)
	require.True(t, accepted)

	accepted, err = v.Verify(nil, nil)
	require.NoError(t, err)
	require.False(t, accepted)

	_, ok = r.Get(NameGroth16)
	require.False(t, ok)

	r.Register(NameGroth16, sharedProver(t).Verifier())
	require.Equal(t, []string{NameGroth16, NameMock}, r.Names())
}
