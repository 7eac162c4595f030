package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/spf13/cobra"

	"github.com/oblivion-chain/oblivion/app"
	"github.com/oblivion-chain/oblivion/x/marketplace/verifier"
)

const (
	flagOwner          = "owner"
	flagVerifier       = "verifier"
	flagGenesisAccount = "genesis-account"
	flagOverwrite      = "overwrite"
	flagRequireProof   = "require-proof"
)

// InitCmd writes the node configuration and a devnet genesis.
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the node home: config.toml, genesis.json and verifier keys",
		Long: `Initialize writes <home>/config/config.toml and <home>/config/genesis.json.

The marketplace owner is given with --owner as an address or a key name. Accounts are
funded at genesis with repeated --genesis-account <address|key>=<amount> flags, where
the amount is in base units or carries the denom (5000000uobl).

With --verifier groth16 a circuit setup runs and the proving and verifying keys are
written next to the genesis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}

			configDir := filepath.Join(cc.Home, configDirName)
			genesisPath := filepath.Join(configDir, genesisName)
			overwrite, _ := cmd.Flags().GetBool(flagOverwrite)
			if _, err := os.Stat(genesisPath); err == nil && !overwrite {
				return fmt.Errorf("genesis file already exists: %s", genesisPath)
			}

			ownerArg, _ := cmd.Flags().GetString(flagOwner)
			if ownerArg == "" {
				return fmt.Errorf("--%s is required", flagOwner)
			}
			owner, err := cc.address(ownerArg)
			if err != nil {
				return err
			}

			chainID := cc.Config.App.ChainID
			doc := app.NewDefaultGenesis(chainID, owner, time.Now())

			accounts, _ := cmd.Flags().GetStringArray(flagGenesisAccount)
			for _, entry := range accounts {
				acc, err := cc.parseGenesisAccount(entry, doc.Marketplace.Params.Denom)
				if err != nil {
					return err
				}
				doc.Accounts = append(doc.Accounts, acc)
			}

			name, _ := cmd.Flags().GetString(flagVerifier)
			requireProof, _ := cmd.Flags().GetBool(flagRequireProof)
			doc.Marketplace.Verifier = name
			doc.Marketplace.Params.RequireProof = requireProof
			switch name {
			case verifier.NameMock:
			case verifier.NameGroth16:
				if err := writeProverKeys(configDir); err != nil {
					return err
				}
				cc.Logger.Info("wrote groth16 keys", "dir", configDir)
			default:
				return fmt.Errorf("unknown verifier %q", name)
			}
			if err := doc.Validate(); err != nil {
				return err
			}

			if err := os.MkdirAll(configDir, 0o755); err != nil {
				return err
			}
			cfg := cc.Config
			cfg.App.DataDir = "data"
			cfg.Content.Dir = "content"
			cfg.Telemetry.ChainID = chainID
			if cfg.API.JWTSecret == "" {
				secret := make([]byte, 32)
				if _, err := rand.Read(secret); err != nil {
					return err
				}
				cfg.API.JWTSecret = hex.EncodeToString(secret)
			}
			if err := WriteConfig(filepath.Join(configDir, configFileName), cfg); err != nil {
				return err
			}
			if err := doc.Save(genesisPath); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s (chain %s, owner %s)\n", cc.Home, chainID, owner)
			return nil
		},
	}
	cmd.Flags().String(flagOwner, "", "marketplace owner address or key name")
	cmd.Flags().String(flagVerifier, verifier.NameMock, "proof verifier (mock|groth16)")
	cmd.Flags().Bool(flagRequireProof, false, "reject results submitted without a proof")
	cmd.Flags().StringArray(flagGenesisAccount, nil, "fund <address|key>=<amount> at genesis")
	cmd.Flags().Bool(flagOverwrite, false, "overwrite an existing genesis")
	return cmd
}

func (cc *commandContext) parseGenesisAccount(entry, denom string) (app.GenesisAccount, error) {
	who, amountStr, ok := strings.Cut(entry, "=")
	if !ok {
		return app.GenesisAccount{}, fmt.Errorf("genesis account %q: expected <address>=<amount>", entry)
	}
	addr, err := cc.address(who)
	if err != nil {
		return app.GenesisAccount{}, err
	}
	amount, err := parseAmount(amountStr, denom)
	if err != nil {
		return app.GenesisAccount{}, fmt.Errorf("genesis account %q: %w", entry, err)
	}
	return app.GenesisAccount{
		Address: addr.String(),
		Coins:   sdk.NewCoins(sdk.NewCoin(denom, amount)),
	}, nil
}

// parseAmount accepts a positive base unit integer, optionally suffixed with denom.
func parseAmount(s, denom string) (math.Int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), denom)
	amount, ok := math.NewIntFromString(s)
	if !ok || !amount.IsPositive() {
		return math.Int{}, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func writeProverKeys(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	prover, err := verifier.NewProver()
	if err != nil {
		return fmt.Errorf("groth16 setup: %w", err)
	}
	pk, err := os.Create(filepath.Join(dir, provingKeyName))
	if err != nil {
		return err
	}
	vk, err := os.Create(filepath.Join(dir, verifyingKey))
	if err != nil {
		pk.Close()
		return err
	}
	return errors.Join(
		prover.WriteProvingKey(pk),
		prover.WriteVerifyingKey(vk),
		pk.Close(),
		vk.Close(),
	)
}

// loadProver reads the keys written by init --verifier groth16.
func loadProver(home string) (*verifier.Prover, error) {
	dir := filepath.Join(home, configDirName)
	pk, err := os.Open(filepath.Join(dir, provingKeyName))
	if err != nil {
		return nil, fmt.Errorf("proving key: %w", err)
	}
	defer pk.Close()
	vk, err := os.Open(filepath.Join(dir, verifyingKey))
	if err != nil {
		return nil, fmt.Errorf("verifying key: %w", err)
	}
	defer vk.Close()
	return verifier.LoadProver(pk, vk)
}
