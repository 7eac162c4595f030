package verifier

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// PublicInputCount is the number of public inputs of ResultCircuit.
const PublicInputCount = 2

// Groth16Verifier verifies ResultCircuit proofs against a fixed verifying key.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

// NewGroth16Verifier wraps an already loaded verifying key.
func NewGroth16Verifier(vk groth16.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// LoadGroth16Verifier reads a serialized BN254 verifying key.
func LoadGroth16Verifier(r io.Reader) (*Groth16Verifier, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to read verifying key: %w", err)
	}
	return &Groth16Verifier{vk: vk}, nil
}

// Verify checks proof against publicInputs = [jobID, modelDigest].
// A well-formed proof that does not verify returns (false, nil).
func (v *Groth16Verifier) Verify(publicInputs []*big.Int, proof []byte) (bool, error) {
	if len(publicInputs) != PublicInputCount {
		return false, fmt.Errorf("expected %d public inputs, got %d", PublicInputCount, len(publicInputs))
	}
	modulus := ecc.BN254.ScalarField()
	for i, in := range publicInputs {
		if in == nil || in.Sign() < 0 || in.Cmp(modulus) >= 0 {
			return false, fmt.Errorf("public input %d outside the scalar field", i)
		}
	}

	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return false, fmt.Errorf("failed to deserialize proof: %w", err)
	}

	assignment := &ResultCircuit{
		JobID:       publicInputs[0],
		ModelDigest: publicInputs[1],
	}
	publicWitness, err := frontend.NewWitness(assignment, modulus, frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("failed to create public witness: %w", err)
	}

	if err := groth16.Verify(p, v.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}

// Prover holds the compiled circuit and keys produced by a local setup.
// Local setup is for devnets and tests; production keys come from a ceremony.
type Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

func compileResultCircuit() (constraint.ConstraintSystem, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &ResultCircuit{})
	if err != nil {
		return nil, fmt.Errorf("failed to compile result circuit: %w", err)
	}
	return ccs, nil
}

// NewProver compiles ResultCircuit and runs a Groth16 setup.
func NewProver() (*Prover, error) {
	ccs, err := compileResultCircuit()
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("failed to run groth16 setup: %w", err)
	}
	return &Prover{ccs: ccs, pk: pk, vk: vk}, nil
}

// Verifier returns a verifier bound to this prover's verifying key.
func (p *Prover) Verifier() *Groth16Verifier {
	return NewGroth16Verifier(p.vk)
}

// LoadProver recompiles ResultCircuit and reads keys written by
// WriteProvingKey and WriteVerifyingKey.
func LoadProver(pkReader, vkReader io.Reader) (*Prover, error) {
	ccs, err := compileResultCircuit()
	if err != nil {
		return nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(pkReader); err != nil {
		return nil, fmt.Errorf("failed to read proving key: %w", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(vkReader); err != nil {
		return nil, fmt.Errorf("failed to read verifying key: %w", err)
	}
	return &Prover{ccs: ccs, pk: pk, vk: vk}, nil
}

// WriteVerifyingKey serializes the verifying key.
func (p *Prover) WriteVerifyingKey(w io.Writer) error {
	_, err := p.vk.WriteTo(w)
	return err
}

// WriteProvingKey serializes the proving key.
func (p *Prover) WriteProvingKey(w io.Writer) error {
	_, err := p.pk.WriteTo(w)
	return err
}

// Prove produces a serialized proof and its public inputs for a job result.
func (p *Prover) Prove(jobID uint64, salt *big.Int, weights [WeightCount]*big.Int) ([]byte, []*big.Int, error) {
	digest := ModelDigest(jobID, salt, weights)

	assignment := &ResultCircuit{
		JobID:       jobID,
		ModelDigest: digest,
		Salt:        salt,
	}
	for i, w := range weights {
		assignment.Weights[i] = w
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create witness: %w", err)
	}
	proof, err := groth16.Prove(p.ccs, p.pk, witness)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate proof: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("failed to serialize proof: %w", err)
	}
	return buf.Bytes(), []*big.Int{new(big.Int).SetUint64(jobID), digest}, nil
}
