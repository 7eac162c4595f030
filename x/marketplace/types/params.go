package types

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

const (
	// DefaultInferenceTimeout bounds an inference claim
	DefaultInferenceTimeout = time.Hour
	// DefaultTrainingTimeout bounds a training claim
	DefaultTrainingTimeout = 24 * time.Hour
)

// DefaultMinStake is 0.01 OBL
var DefaultMinStake = math.NewInt(10_000)

// Params are the owner-tunable marketplace settings.
type Params struct {
	Denom            string        `json:"denom"`
	MinStake         math.Int      `json:"min_stake"`
	InferenceTimeout time.Duration `json:"inference_timeout"`
	TrainingTimeout  time.Duration `json:"training_timeout"`
	// RequireProof disables the proofless result submission path.
	RequireProof bool `json:"require_proof"`
}

// DefaultParams returns default marketplace parameters
func DefaultParams() Params {
	return Params{
		Denom:            DefaultDenom,
		MinStake:         DefaultMinStake,
		InferenceTimeout: DefaultInferenceTimeout,
		TrainingTimeout:  DefaultTrainingTimeout,
		RequireProof:     false,
	}
}

// Timeout returns the claim timeout for the given job type.
func (p Params) Timeout(jobType JobType) (time.Duration, error) {
	switch jobType {
	case JobTypeInference:
		return p.InferenceTimeout, nil
	case JobTypeTraining:
		return p.TrainingTimeout, nil
	default:
		return 0, ErrInvalidJobType.Wrapf("job type %d", jobType)
	}
}

// Coins wraps amount in the params denom.
func (p Params) Coins(amount math.Int) sdk.Coins {
	return sdk.NewCoins(sdk.NewCoin(p.Denom, amount))
}

// Validate validates the params
func (p Params) Validate() error {
	if err := sdk.ValidateDenom(p.Denom); err != nil {
		return ErrInvalidParams.Wrapf("denom: %s", err)
	}
	if p.MinStake.IsNil() || !p.MinStake.IsPositive() {
		return ErrInvalidParams.Wrap("min stake must be positive")
	}
	if p.InferenceTimeout <= 0 {
		return ErrInvalidParams.Wrap("inference timeout must be positive")
	}
	if p.TrainingTimeout <= 0 {
		return ErrInvalidParams.Wrap("training timeout must be positive")
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("denom=%s min_stake=%s inference_timeout=%s training_timeout=%s require_proof=%t",
		p.Denom, p.MinStake, p.InferenceTimeout, p.TrainingTimeout, p.RequireProof)
}
