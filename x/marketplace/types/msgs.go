package types

import (
	"math/big"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Message types
const (
	TypeMsgRegisterWorker     = "register_worker"
	TypeMsgDepositStake       = "deposit_stake"
	TypeMsgWithdrawStake      = "withdraw_stake"
	TypeMsgDeactivateWorker   = "deactivate_worker"
	TypeMsgCreateJob          = "create_job"
	TypeMsgCancelJob          = "cancel_job"
	TypeMsgClaimJob           = "claim_job"
	TypeMsgSubmitResult       = "submit_result"
	TypeMsgSubmitResultSimple = "submit_result_simple"
	TypeMsgExpireJob          = "expire_job"
	TypeMsgSlashWorker        = "slash_worker"
	TypeMsgUpdateVerifier     = "update_verifier"
	TypeMsgTransferOwnership  = "transfer_ownership"
	TypeMsgUpdateParams       = "update_params"
	TypeMsgWithdrawTreasury   = "withdraw_treasury"
)

// Msg is a state-mutating marketplace entry point.
type Msg interface {
	Type() string
	ValidateBasic() error
	GetSigner() sdk.AccAddress
}

var (
	_ Msg = &MsgRegisterWorker{}
	_ Msg = &MsgDepositStake{}
	_ Msg = &MsgWithdrawStake{}
	_ Msg = &MsgDeactivateWorker{}
	_ Msg = &MsgCreateJob{}
	_ Msg = &MsgCancelJob{}
	_ Msg = &MsgClaimJob{}
	_ Msg = &MsgSubmitResult{}
	_ Msg = &MsgSubmitResultSimple{}
	_ Msg = &MsgExpireJob{}
	_ Msg = &MsgSlashWorker{}
	_ Msg = &MsgUpdateVerifier{}
	_ Msg = &MsgTransferOwnership{}
	_ Msg = &MsgUpdateParams{}
	_ Msg = &MsgWithdrawTreasury{}
)

// mustAcc parses an address already checked by ValidateBasic.
func mustAcc(addr string) sdk.AccAddress {
	acc, _ := sdk.AccAddressFromBech32(addr)
	return acc
}

func validateAddress(field, addr string) error {
	if _, err := sdk.AccAddressFromBech32(addr); err != nil {
		return ErrInvalidAddress.Wrapf("%s: %s", field, err)
	}
	return nil
}

func validatePositive(field string, amount math.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount.Wrapf("%s must be positive", field)
	}
	return nil
}

// MsgRegisterWorker registers the signer as a worker with an initial stake.
type MsgRegisterWorker struct {
	Worker string   `json:"worker"`
	NodeID string   `json:"node_id"`
	Stake  math.Int `json:"stake"`
}

func (msg *MsgRegisterWorker) Type() string              { return TypeMsgRegisterWorker }
func (msg *MsgRegisterWorker) GetSigner() sdk.AccAddress { return mustAcc(msg.Worker) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgRegisterWorker) ValidateBasic() error {
	if err := validateAddress("worker", msg.Worker); err != nil {
		return err
	}
	if msg.NodeID == "" {
		return ErrInvalidNodeID
	}
	return validatePositive("stake", msg.Stake)
}

// MsgDepositStake adds free stake to an active worker.
type MsgDepositStake struct {
	Worker string   `json:"worker"`
	Amount math.Int `json:"amount"`
}

func (msg *MsgDepositStake) Type() string              { return TypeMsgDepositStake }
func (msg *MsgDepositStake) GetSigner() sdk.AccAddress { return mustAcc(msg.Worker) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgDepositStake) ValidateBasic() error {
	if err := validateAddress("worker", msg.Worker); err != nil {
		return err
	}
	return validatePositive("amount", msg.Amount)
}

// MsgWithdrawStake returns free stake above the minimum to the worker.
type MsgWithdrawStake struct {
	Worker string   `json:"worker"`
	Amount math.Int `json:"amount"`
}

func (msg *MsgWithdrawStake) Type() string              { return TypeMsgWithdrawStake }
func (msg *MsgWithdrawStake) GetSigner() sdk.AccAddress { return mustAcc(msg.Worker) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgWithdrawStake) ValidateBasic() error {
	if err := validateAddress("worker", msg.Worker); err != nil {
		return err
	}
	return validatePositive("amount", msg.Amount)
}

// MsgDeactivateWorker retires the signer and refunds its free stake.
type MsgDeactivateWorker struct {
	Worker string `json:"worker"`
}

func (msg *MsgDeactivateWorker) Type() string              { return TypeMsgDeactivateWorker }
func (msg *MsgDeactivateWorker) GetSigner() sdk.AccAddress { return mustAcc(msg.Worker) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgDeactivateWorker) ValidateBasic() error {
	return validateAddress("worker", msg.Worker)
}

// MsgCreateJob escrows a reward and opens a pending job.
type MsgCreateJob struct {
	Requester  string   `json:"requester"`
	ScriptHash string   `json:"script_hash"`
	DataHash   string   `json:"data_hash"`
	JobType    JobType  `json:"job_type"`
	Reward     math.Int `json:"reward"`
}

func (msg *MsgCreateJob) Type() string              { return TypeMsgCreateJob }
func (msg *MsgCreateJob) GetSigner() sdk.AccAddress { return mustAcc(msg.Requester) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgCreateJob) ValidateBasic() error {
	if err := validateAddress("requester", msg.Requester); err != nil {
		return err
	}
	if msg.ScriptHash == "" {
		return ErrEmptyHash.Wrap("script hash")
	}
	if msg.DataHash == "" {
		return ErrEmptyHash.Wrap("data hash")
	}
	if !msg.JobType.IsValid() {
		return ErrInvalidJobType.Wrapf("job type %d", msg.JobType)
	}
	return validatePositive("reward", msg.Reward)
}

// MsgCreateJobResponse carries the index of the new job.
type MsgCreateJobResponse struct {
	JobID uint64 `json:"job_id"`
}

// MsgCancelJob cancels a pending job and refunds the requester.
type MsgCancelJob struct {
	Requester string `json:"requester"`
	JobID     uint64 `json:"job_id"`
}

func (msg *MsgCancelJob) Type() string              { return TypeMsgCancelJob }
func (msg *MsgCancelJob) GetSigner() sdk.AccAddress { return mustAcc(msg.Requester) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgCancelJob) ValidateBasic() error {
	return validateAddress("requester", msg.Requester)
}

// MsgClaimJob assigns a pending job to the signing worker.
type MsgClaimJob struct {
	Worker string `json:"worker"`
	JobID  uint64 `json:"job_id"`
}

func (msg *MsgClaimJob) Type() string              { return TypeMsgClaimJob }
func (msg *MsgClaimJob) GetSigner() sdk.AccAddress { return mustAcc(msg.Worker) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgClaimJob) ValidateBasic() error {
	return validateAddress("worker", msg.Worker)
}

// MsgSubmitResult completes a job with a zero-knowledge proof.
// PublicInputs are decimal field elements.
type MsgSubmitResult struct {
	Worker       string   `json:"worker"`
	JobID        uint64   `json:"job_id"`
	ModelHash    string   `json:"model_hash"`
	ProofHash    string   `json:"proof_hash"`
	Proof        []byte   `json:"proof"`
	PublicInputs []string `json:"public_inputs"`
}

func (msg *MsgSubmitResult) Type() string              { return TypeMsgSubmitResult }
func (msg *MsgSubmitResult) GetSigner() sdk.AccAddress { return mustAcc(msg.Worker) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgSubmitResult) ValidateBasic() error {
	if err := validateAddress("worker", msg.Worker); err != nil {
		return err
	}
	if msg.ModelHash == "" {
		return ErrEmptyHash.Wrap("model hash")
	}
	if len(msg.Proof) == 0 {
		return ErrInvalidProof.Wrap("proof cannot be empty")
	}
	_, err := msg.PublicInputsBig()
	return err
}

// PublicInputsBig parses the decimal public inputs.
func (msg *MsgSubmitResult) PublicInputsBig() ([]*big.Int, error) {
	out := make([]*big.Int, len(msg.PublicInputs))
	for i, s := range msg.PublicInputs {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, ErrInvalidProof.Wrapf("public input %d is not a decimal integer", i)
		}
		out[i] = v
	}
	return out, nil
}

// MsgSubmitResultResponse reports the payout sent to the worker.
type MsgSubmitResultResponse struct {
	Payout math.Int `json:"payout"`
}

// MsgSubmitResultSimple completes a job without proof verification.
type MsgSubmitResultSimple struct {
	Worker    string `json:"worker"`
	JobID     uint64 `json:"job_id"`
	ModelHash string `json:"model_hash"`
	ProofHash string `json:"proof_hash"`
}

func (msg *MsgSubmitResultSimple) Type() string              { return TypeMsgSubmitResultSimple }
func (msg *MsgSubmitResultSimple) GetSigner() sdk.AccAddress { return mustAcc(msg.Worker) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgSubmitResultSimple) ValidateBasic() error {
	if err := validateAddress("worker", msg.Worker); err != nil {
		return err
	}
	if msg.ModelHash == "" {
		return ErrEmptyHash.Wrap("model hash")
	}
	return nil
}

// MsgExpireJob expires a processing job past its timeout. Anyone may send it.
type MsgExpireJob struct {
	Caller string `json:"caller"`
	JobID  uint64 `json:"job_id"`
}

func (msg *MsgExpireJob) Type() string              { return TypeMsgExpireJob }
func (msg *MsgExpireJob) GetSigner() sdk.AccAddress { return mustAcc(msg.Caller) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgExpireJob) ValidateBasic() error {
	return validateAddress("caller", msg.Caller)
}

// MsgSlashWorker forfeits the stake locked on a processing job.
type MsgSlashWorker struct {
	Owner string `json:"owner"`
	JobID uint64 `json:"job_id"`
}

func (msg *MsgSlashWorker) Type() string              { return TypeMsgSlashWorker }
func (msg *MsgSlashWorker) GetSigner() sdk.AccAddress { return mustAcc(msg.Owner) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgSlashWorker) ValidateBasic() error {
	return validateAddress("owner", msg.Owner)
}

// MsgUpdateVerifier rotates the proof verifier by registered name.
type MsgUpdateVerifier struct {
	Owner    string `json:"owner"`
	Verifier string `json:"verifier"`
}

func (msg *MsgUpdateVerifier) Type() string              { return TypeMsgUpdateVerifier }
func (msg *MsgUpdateVerifier) GetSigner() sdk.AccAddress { return mustAcc(msg.Owner) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgUpdateVerifier) ValidateBasic() error {
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	if msg.Verifier == "" {
		return ErrUnknownVerifier.Wrap("verifier name cannot be empty")
	}
	return nil
}

// MsgTransferOwnership hands the owner capability to another address.
type MsgTransferOwnership struct {
	Owner    string `json:"owner"`
	NewOwner string `json:"new_owner"`
}

func (msg *MsgTransferOwnership) Type() string              { return TypeMsgTransferOwnership }
func (msg *MsgTransferOwnership) GetSigner() sdk.AccAddress { return mustAcc(msg.Owner) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgTransferOwnership) ValidateBasic() error {
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	return validateAddress("new_owner", msg.NewOwner)
}

// MsgUpdateParams replaces the module params.
type MsgUpdateParams struct {
	Owner  string `json:"owner"`
	Params Params `json:"params"`
}

func (msg *MsgUpdateParams) Type() string              { return TypeMsgUpdateParams }
func (msg *MsgUpdateParams) GetSigner() sdk.AccAddress { return mustAcc(msg.Owner) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgUpdateParams) ValidateBasic() error {
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	return msg.Params.Validate()
}

// MsgWithdrawTreasury sends accrued forfeited stake to a recipient.
type MsgWithdrawTreasury struct {
	Owner     string   `json:"owner"`
	Recipient string   `json:"recipient"`
	Amount    math.Int `json:"amount"`
}

func (msg *MsgWithdrawTreasury) Type() string              { return TypeMsgWithdrawTreasury }
func (msg *MsgWithdrawTreasury) GetSigner() sdk.AccAddress { return mustAcc(msg.Owner) }

// ValidateBasic does a sanity check on the provided data
func (msg *MsgWithdrawTreasury) ValidateBasic() error {
	if err := validateAddress("owner", msg.Owner); err != nil {
		return err
	}
	if err := validateAddress("recipient", msg.Recipient); err != nil {
		return err
	}
	return validatePositive("amount", msg.Amount)
}

// MsgEmptyResponse is returned by entry points with no result payload.
type MsgEmptyResponse struct{}
