package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cosmossdk.io/log"
	"github.com/cosmos/cosmos-sdk/client/input"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oblivion-chain/oblivion/client"
)

const (
	flagHome      = "home"
	flagNode      = "node"
	flagChainID   = "chain-id"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagFrom      = "from"

	// DefaultAPIURL is the API address client commands talk to.
	DefaultAPIURL = "http://localhost:1317"
)

// DefaultNodeHome is the default home directory of oblivd.
var DefaultNodeHome = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".oblivion"
	}
	return filepath.Join(home, ".oblivion")
}()

type contextKey struct{}

// commandContext carries the resolved configuration to every subcommand.
type commandContext struct {
	Home   string
	Config NodeConfig
	Logger log.Logger
	Viper  *viper.Viper

	stdin *bufio.Reader
}

// reader returns one buffered stdin reader shared by every prompt.
func (cc *commandContext) reader(cmd *cobra.Command) *bufio.Reader {
	if cc.stdin == nil {
		cc.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	return cc.stdin
}

func getCommandContext(cmd *cobra.Command) (*commandContext, error) {
	if cc, ok := cmd.Context().Value(contextKey{}).(*commandContext); ok {
		return cc, nil
	}
	return nil, errors.New("command context not initialized")
}

// NewRootCmd creates the oblivd root command. Every call returns an
// independent command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	v, err := newViper()
	if err != nil {
		panic(err)
	}

	rootCmd := &cobra.Command{
		Use:   "oblivd",
		Short: "Oblivion ML-job marketplace node and client",
		Long: `oblivd runs an Oblivion devnet node and talks to one.

Requesters escrow rewards for ML jobs, staked workers claim and complete them,
and anyone may expire a job whose claim timed out.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.SetErr(cmd.ErrOrStderr())

			home, err := cmd.Flags().GetString(flagHome)
			if err != nil {
				return err
			}
			if env := os.Getenv(envPrefix + "_HOME"); env != "" && !cmd.Flags().Changed(flagHome) {
				home = env
			}

			cfg, err := LoadConfig(v, home)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log.level"), v.GetString("log.format"))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, contextKey{}, &commandContext{
				Home:   home,
				Config: cfg,
				Logger: logger,
				Viper:  v,
			}))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(flagHome, DefaultNodeHome, "directory for config and data")
	flags.String(flagNode, DefaultAPIURL, "API endpoint of the node")
	flags.String(flagChainID, "", "the network chain ID")
	flags.String(flagLogLevel, zerolog.InfoLevel.String(), "log level (trace|debug|info|warn|error)")
	flags.String(flagLogFormat, "plain", "log format (plain|json)")

	mustBind(v, "app.chain_id", flags.Lookup(flagChainID))
	mustBind(v, "node", flags.Lookup(flagNode))
	mustBind(v, "log.level", flags.Lookup(flagLogLevel))
	mustBind(v, "log.format", flags.Lookup(flagLogFormat))

	rootCmd.AddCommand(
		InitCmd(),
		StartCmd(),
		KeysCmd(),
		TxCmd(),
		QueryCmd(),
		KeeperBotCmd(),
		FaucetCmd(),
		ContentCmd(),
	)
	return rootCmd
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind %s: %v", key, err))
	}
}

func newLogger(w io.Writer, level, format string) (log.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	opts := []log.Option{log.LevelOption(lvl)}
	switch format {
	case "json":
		opts = append(opts, log.OutputJSONOption())
	case "plain", "":
		opts = append(opts, log.ColorOption(false))
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	return log.NewLogger(w, opts...), nil
}

// apiClient returns a client for the configured node.
func (cc *commandContext) apiClient() (*client.Client, error) {
	return client.New(cc.Viper.GetString("node"))
}

// keystore opens the keyring directory under home. OBLIV_KEYRING_LIGHT_KDF
// lowers the key derivation cost for throwaway keys.
func (cc *commandContext) keystore() (*client.Keystore, error) {
	var opts []client.KeystoreOption
	if cc.Viper.GetBool("keyring.light_kdf") {
		opts = append(opts, client.WithLightweightKDF())
	}
	return client.NewKeystore(filepath.Join(cc.Home, keyringDirName), opts...)
}

// passphrase returns OBLIV_KEYRING_PASSPHRASE or prompts for one.
func (cc *commandContext) passphrase(cmd *cobra.Command, confirm bool) (string, error) {
	if p := cc.Viper.GetString("keyring.passphrase"); p != "" {
		return p, nil
	}
	reader := cc.reader(cmd)
	pass, err := input.GetPassword("Enter keyring passphrase:", reader)
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := input.GetPassword("Re-enter keyring passphrase:", reader)
		if err != nil {
			return "", err
		}
		if again != pass {
			return "", errors.New("passphrases do not match")
		}
	}
	return pass, nil
}

// signer loads the named key and binds it to the configured node.
func (cc *commandContext) signer(cmd *cobra.Command, name string) (*client.Signer, error) {
	if name == "" {
		return nil, fmt.Errorf("--%s is required", flagFrom)
	}
	ks, err := cc.keystore()
	if err != nil {
		return nil, err
	}
	pass, err := cc.passphrase(cmd, false)
	if err != nil {
		return nil, err
	}
	priv, err := ks.Load(name, pass)
	if err != nil {
		return nil, err
	}
	c, err := cc.apiClient()
	if err != nil {
		return nil, err
	}
	return client.NewSigner(c, priv, cc.Config.App.ChainID), nil
}

// address parses a bech32 address or resolves a key name from the keyring.
func (cc *commandContext) address(s string) (sdk.AccAddress, error) {
	if addr, err := sdk.AccAddressFromBech32(s); err == nil {
		return addr, nil
	}
	ks, err := cc.keystore()
	if err != nil {
		return nil, err
	}
	info, err := ks.Show(s)
	if err != nil {
		return nil, fmt.Errorf("%q is neither an address nor a key name: %w", s, err)
	}
	return sdk.AccAddressFromBech32(info.Address)
}
