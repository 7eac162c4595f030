package verifier

import (
	"fmt"
	"hash"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcbn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// WeightCount is the number of model weight commitments bound by a result proof.
const WeightCount = 8

// ResultCircuit proves knowledge of the model weights behind a submitted result.
//
// Circuit Statement: "ModelDigest = MiMC(JobID, Salt, Weights[0..7])"
//
// The job id is public so a proof for one job cannot be replayed on another.
type ResultCircuit struct {
	// Public inputs
	JobID       frontend.Variable `gnark:",public"`
	ModelDigest frontend.Variable `gnark:",public"`

	// Private inputs
	Weights [WeightCount]frontend.Variable `gnark:",secret"`
	Salt    frontend.Variable              `gnark:",secret"`
}

// Define implements the gnark Circuit interface.
func (c *ResultCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return fmt.Errorf("failed to initialize MiMC: %w", err)
	}
	h.Write(c.JobID, c.Salt)
	h.Write(c.Weights[:]...)
	api.AssertIsEqual(h.Sum(), c.ModelDigest)
	return nil
}

// ModelDigest computes the public digest a worker commits to for a job.
func ModelDigest(jobID uint64, salt *big.Int, weights [WeightCount]*big.Int) *big.Int {
	h := mimcbn254.NewMiMC()
	writeUint64(h, jobID)
	writeBigInt(h, salt)
	for _, w := range weights {
		writeBigInt(h, w)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func writeUint64(h hash.Hash, v uint64) {
	var el fr.Element
	el.SetUint64(v)
	b := el.Bytes()
	h.Write(b[:])
}

func writeBigInt(h hash.Hash, v *big.Int) {
	var el fr.Element
	el.SetBigInt(v)
	b := el.Bytes()
	h.Write(b[:])
}
