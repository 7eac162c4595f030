package cmd

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/oblivion-chain/oblivion/client"
	"github.com/oblivion-chain/oblivion/contentstore"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
	"github.com/oblivion-chain/oblivion/x/marketplace/verifier"
)

const (
	flagJobType          = "type"
	flagReward           = "reward"
	flagScriptFile       = "script-file"
	flagDataFile         = "data-file"
	flagModelFile        = "model-file"
	flagProofHash        = "proof-hash"
	flagWeights          = "weights"
	flagSalt             = "salt"
	flagSimple           = "simple"
	flagMinStake         = "min-stake"
	flagInferenceTimeout = "inference-timeout"
	flagTrainingTimeout  = "training-timeout"
)

// TxCmd groups the marketplace entry points. Every subcommand signs with the
// key named by --from.
func TxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Marketplace transaction subcommands",
	}
	cmd.PersistentFlags().String(flagFrom, "", "name of the signing key")

	cmd.AddCommand(
		registerWorkerCmd(),
		depositStakeCmd(),
		withdrawStakeCmd(),
		deactivateWorkerCmd(),
		createJobCmd(),
		cancelJobCmd(),
		claimJobCmd(),
		submitResultCmd(),
		expireJobCmd(),
		slashWorkerCmd(),
		updateVerifierCmd(),
		transferOwnershipCmd(),
		updateParamsCmd(),
		withdrawTreasuryCmd(),
	)
	return cmd
}

// txEnv is what a tx subcommand needs to build and sign its message.
type txEnv struct {
	cc     *commandContext
	signer *client.Signer
	from   string
	denom  string
}

func newTxEnv(cmd *cobra.Command) (*txEnv, error) {
	cc, err := getCommandContext(cmd)
	if err != nil {
		return nil, err
	}
	name, _ := cmd.Flags().GetString(flagFrom)
	signer, err := cc.signer(cmd, name)
	if err != nil {
		return nil, err
	}
	return &txEnv{
		cc:     cc,
		signer: signer,
		from:   signer.Address().String(),
		denom:  types.DefaultDenom,
	}, nil
}

// broadcast signs msg, prints the receipt and fails when the message failed.
func (e *txEnv) broadcast(cmd *cobra.Command, msg types.Msg) error {
	receipt, err := e.signer.Send(cmd.Context(), msg)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, receipt); err != nil {
		return err
	}
	if !receipt.IsOK() {
		return &client.ReceiptError{Receipt: receipt}
	}
	return nil
}

// txCommand builds a subcommand whose message depends only on its args.
func txCommand(use, short string, args cobra.PositionalArgs, build func(e *txEnv, args []string) (types.Msg, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newTxEnv(cmd)
			if err != nil {
				return err
			}
			msg, err := build(e, args)
			if err != nil {
				return err
			}
			return e.broadcast(cmd, msg)
		},
	}
}

func parseJobID(s string) (uint64, error) {
	id, err := cast.ToUint64E(s)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q: %w", s, err)
	}
	return id, nil
}

func registerWorkerCmd() *cobra.Command {
	return txCommand("register-worker [node-id] [stake]", "Register as a worker with an initial stake",
		cobra.ExactArgs(2), func(e *txEnv, args []string) (types.Msg, error) {
			stake, err := parseAmount(args[1], e.denom)
			if err != nil {
				return nil, err
			}
			return &types.MsgRegisterWorker{Worker: e.from, NodeID: args[0], Stake: stake}, nil
		})
}

func depositStakeCmd() *cobra.Command {
	return txCommand("deposit-stake [amount]", "Add to the worker stake",
		cobra.ExactArgs(1), func(e *txEnv, args []string) (types.Msg, error) {
			amount, err := parseAmount(args[0], e.denom)
			if err != nil {
				return nil, err
			}
			return &types.MsgDepositStake{Worker: e.from, Amount: amount}, nil
		})
}

func withdrawStakeCmd() *cobra.Command {
	return txCommand("withdraw-stake [amount]", "Withdraw unlocked stake",
		cobra.ExactArgs(1), func(e *txEnv, args []string) (types.Msg, error) {
			amount, err := parseAmount(args[0], e.denom)
			if err != nil {
				return nil, err
			}
			return &types.MsgWithdrawStake{Worker: e.from, Amount: amount}, nil
		})
}

func deactivateWorkerCmd() *cobra.Command {
	return txCommand("deactivate-worker", "Stop accepting jobs",
		cobra.NoArgs, func(e *txEnv, _ []string) (types.Msg, error) {
			return &types.MsgDeactivateWorker{Worker: e.from}, nil
		})
}

func createJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-job [script-hash] [data-hash]",
		Short: "Create a job and escrow its reward",
		Long: `Create a job. Script and data are given as content addresses, or uploaded to
the configured content store with --script-file and --data-file.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newTxEnv(cmd)
			if err != nil {
				return err
			}
			scriptHash, dataHash, err := e.jobArtifacts(cmd, args)
			if err != nil {
				return err
			}
			jobTypeStr, _ := cmd.Flags().GetString(flagJobType)
			jobType, err := types.ParseJobType(jobTypeStr)
			if err != nil {
				return err
			}
			rewardStr, _ := cmd.Flags().GetString(flagReward)
			reward, err := parseAmount(rewardStr, e.denom)
			if err != nil {
				return err
			}
			return e.broadcast(cmd, &types.MsgCreateJob{
				Requester:  e.from,
				ScriptHash: scriptHash,
				DataHash:   dataHash,
				JobType:    jobType,
				Reward:     reward,
			})
		},
	}
	cmd.Flags().String(flagJobType, types.JobTypeInference.String(), "job type (inference|training)")
	cmd.Flags().String(flagReward, "", "reward in base units")
	cmd.Flags().String(flagScriptFile, "", "upload the script from this file")
	cmd.Flags().String(flagDataFile, "", "upload the dataset from this file")
	return cmd
}

func (e *txEnv) jobArtifacts(cmd *cobra.Command, args []string) (scriptHash, dataHash string, err error) {
	scriptFile, _ := cmd.Flags().GetString(flagScriptFile)
	dataFile, _ := cmd.Flags().GetString(flagDataFile)

	var store contentstore.Store
	if scriptFile != "" || dataFile != "" {
		if store, err = openContentStore(e.cc.Logger, e.cc.Config.Content); err != nil {
			return "", "", err
		}
	}

	pick := func(i int, file string) (string, error) {
		if file != "" {
			return putFile(cmd, store, file)
		}
		if i < len(args) {
			return args[i], nil
		}
		return "", fmt.Errorf("argument %d or its file flag is required", i+1)
	}
	if scriptHash, err = pick(0, scriptFile); err != nil {
		return "", "", err
	}
	if dataHash, err = pick(1, dataFile); err != nil {
		return "", "", err
	}
	return scriptHash, dataHash, nil
}

func cancelJobCmd() *cobra.Command {
	return txCommand("cancel-job [job-id]", "Cancel a pending job and refund the reward",
		cobra.ExactArgs(1), func(e *txEnv, args []string) (types.Msg, error) {
			id, err := parseJobID(args[0])
			if err != nil {
				return nil, err
			}
			return &types.MsgCancelJob{Requester: e.from, JobID: id}, nil
		})
}

func claimJobCmd() *cobra.Command {
	return txCommand("claim-job [job-id]", "Claim a pending job, locking half its reward as stake",
		cobra.ExactArgs(1), func(e *txEnv, args []string) (types.Msg, error) {
			id, err := parseJobID(args[0])
			if err != nil {
				return nil, err
			}
			return &types.MsgClaimJob{Worker: e.from, JobID: id}, nil
		})
}

func submitResultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit-result [job-id] [model-hash]",
		Short: "Submit the result of a claimed job",
		Long: `Submit a result. The model is given as a content address or uploaded with
--model-file. Unless --simple is set, a groth16 proof binding the job id to the
model weights is generated with the keys written by init and stored in the
content store; its address becomes the proof hash.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newTxEnv(cmd)
			if err != nil {
				return err
			}
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			store, err := openContentStore(e.cc.Logger, e.cc.Config.Content)
			if err != nil {
				return err
			}
			modelHash := ""
			if len(args) == 2 {
				modelHash = args[1]
			}
			if file, _ := cmd.Flags().GetString(flagModelFile); file != "" {
				if modelHash, err = putFile(cmd, store, file); err != nil {
					return err
				}
			}
			if modelHash == "" {
				return fmt.Errorf("model hash or --%s is required", flagModelFile)
			}

			if simple, _ := cmd.Flags().GetBool(flagSimple); simple {
				proofHash, _ := cmd.Flags().GetString(flagProofHash)
				return e.broadcast(cmd, &types.MsgSubmitResultSimple{
					Worker:    e.from,
					JobID:     id,
					ModelHash: modelHash,
					ProofHash: proofHash,
				})
			}

			weights, err := parseWeights(cmd)
			if err != nil {
				return err
			}
			salt, err := parseSalt(cmd)
			if err != nil {
				return err
			}
			prover, err := loadProver(e.cc.Home)
			if err != nil {
				return err
			}
			proof, inputs, err := prover.Prove(id, salt, weights)
			if err != nil {
				return err
			}
			proofHash, err := store.Put(cmd.Context(), proof)
			if err != nil {
				return err
			}

			publicInputs := make([]string, len(inputs))
			for i, in := range inputs {
				publicInputs[i] = in.String()
			}
			return e.broadcast(cmd, &types.MsgSubmitResult{
				Worker:       e.from,
				JobID:        id,
				ModelHash:    modelHash,
				ProofHash:    proofHash,
				Proof:        proof,
				PublicInputs: publicInputs,
			})
		},
	}
	cmd.Flags().String(flagModelFile, "", "upload the model from this file")
	cmd.Flags().Bool(flagSimple, false, "submit without a proof")
	cmd.Flags().String(flagProofHash, "", "proof content address for --simple")
	cmd.Flags().StringSlice(flagWeights, nil, fmt.Sprintf("%d comma separated model weights", verifier.WeightCount))
	cmd.Flags().String(flagSalt, "", "commitment salt (random when empty)")
	return cmd
}

func parseWeights(cmd *cobra.Command) ([verifier.WeightCount]*big.Int, error) {
	var weights [verifier.WeightCount]*big.Int
	raw, _ := cmd.Flags().GetStringSlice(flagWeights)
	if len(raw) != verifier.WeightCount {
		return weights, fmt.Errorf("--%s needs %d values, got %d", flagWeights, verifier.WeightCount, len(raw))
	}
	for i, s := range raw {
		w, ok := new(big.Int).SetString(s, 10)
		if !ok || w.Sign() < 0 {
			return weights, fmt.Errorf("invalid weight %q", s)
		}
		weights[i] = w
	}
	return weights, nil
}

func parseSalt(cmd *cobra.Command) (*big.Int, error) {
	s, _ := cmd.Flags().GetString(flagSalt)
	if s == "" {
		return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	salt, ok := new(big.Int).SetString(s, 10)
	if !ok || salt.Sign() < 0 {
		return nil, fmt.Errorf("invalid salt %q", s)
	}
	return salt, nil
}

func expireJobCmd() *cobra.Command {
	return txCommand("expire-job [job-id]", "Expire a processing job whose claim timed out",
		cobra.ExactArgs(1), func(e *txEnv, args []string) (types.Msg, error) {
			id, err := parseJobID(args[0])
			if err != nil {
				return nil, err
			}
			return &types.MsgExpireJob{Caller: e.from, JobID: id}, nil
		})
}

func slashWorkerCmd() *cobra.Command {
	return txCommand("slash-worker [job-id]", "Slash the worker of a processing job (owner)",
		cobra.ExactArgs(1), func(e *txEnv, args []string) (types.Msg, error) {
			id, err := parseJobID(args[0])
			if err != nil {
				return nil, err
			}
			return &types.MsgSlashWorker{Owner: e.from, JobID: id}, nil
		})
}

func updateVerifierCmd() *cobra.Command {
	return txCommand("update-verifier [name]", "Select the proof verifier (owner)",
		cobra.ExactArgs(1), func(e *txEnv, args []string) (types.Msg, error) {
			return &types.MsgUpdateVerifier{Owner: e.from, Verifier: args[0]}, nil
		})
}

func transferOwnershipCmd() *cobra.Command {
	return txCommand("transfer-ownership [new-owner]", "Hand the marketplace to a new owner (owner)",
		cobra.ExactArgs(1), func(e *txEnv, args []string) (types.Msg, error) {
			newOwner, err := e.cc.address(args[0])
			if err != nil {
				return nil, err
			}
			return &types.MsgTransferOwnership{Owner: e.from, NewOwner: newOwner.String()}, nil
		})
}

func updateParamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-params",
		Short: "Change marketplace parameters (owner)",
		Long:  "Fetches the current parameters and replaces the fields given as flags.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newTxEnv(cmd)
			if err != nil {
				return err
			}
			params, err := e.signer.Client().Params(cmd.Context())
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed(flagMinStake) {
				s, _ := flags.GetString(flagMinStake)
				if params.MinStake, err = parseAmount(s, params.Denom); err != nil {
					return err
				}
			}
			if flags.Changed(flagInferenceTimeout) {
				params.InferenceTimeout, _ = flags.GetDuration(flagInferenceTimeout)
			}
			if flags.Changed(flagTrainingTimeout) {
				params.TrainingTimeout, _ = flags.GetDuration(flagTrainingTimeout)
			}
			if flags.Changed(flagRequireProof) {
				params.RequireProof, _ = flags.GetBool(flagRequireProof)
			}
			if err := params.Validate(); err != nil {
				return err
			}
			return e.broadcast(cmd, &types.MsgUpdateParams{Owner: e.from, Params: params})
		},
	}
	cmd.Flags().String(flagMinStake, "", "minimum worker stake in base units")
	cmd.Flags().Duration(flagInferenceTimeout, 0, "claim timeout of inference jobs")
	cmd.Flags().Duration(flagTrainingTimeout, 0, "claim timeout of training jobs")
	cmd.Flags().Bool(flagRequireProof, false, "reject results submitted without a proof")
	return cmd
}

func withdrawTreasuryCmd() *cobra.Command {
	return txCommand("withdraw-treasury [recipient] [amount]", "Pay out forfeited stake (owner)",
		cobra.ExactArgs(2), func(e *txEnv, args []string) (types.Msg, error) {
			recipient, err := e.cc.address(args[0])
			if err != nil {
				return nil, err
			}
			amount, err := parseAmount(args[1], e.denom)
			if err != nil {
				return nil, err
			}
			return &types.MsgWithdrawTreasury{Owner: e.from, Recipient: recipient.String(), Amount: amount}, nil
		})
}
