package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oblivion-chain/oblivion/api"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

const (
	flagTTL   = "ttl"
	flagToken = "token"
	flagAny   = "any"
)

// FaucetCmd issues faucet tokens and requests devnet funds.
func FaucetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faucet",
		Short: "Devnet faucet helpers",
	}
	cmd.AddCommand(faucetTokenCmd(), faucetRequestCmd())
	return cmd
}

func faucetTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [address|key]",
		Short: "Issue a faucet token signed with api.jwt_secret",
		Long: `Issue a bearer token for POST /v1/faucet. The token is restricted to one
address unless --any is set.`,
		Args: cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			secret := cc.Config.API.JWTSecret
			if secret == "" {
				return errors.New("api.jwt_secret is not configured")
			}

			anyAddr, _ := cmd.Flags().GetBool(flagAny)
			var restricted string
			switch {
			case anyAddr && len(args) == 0:
			case !anyAddr && len(args) == 1:
				addr, err := cc.address(args[0])
				if err != nil {
					return err
				}
				restricted = addr.String()
			default:
				return fmt.Errorf("give exactly one of an address or --%s", flagAny)
			}

			ttl, _ := cmd.Flags().GetDuration(flagTTL)
			token, err := api.NewFaucetAuth([]byte(secret)).GenerateToken(restricted, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Duration(flagTTL, time.Hour, "token lifetime")
	cmd.Flags().Bool(flagAny, false, "allow funding any address")
	return cmd
}

func faucetRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request [address|key] [amount]",
		Short: "Fund an account from the devnet faucet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			addr, err := cc.address(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1], types.DefaultDenom)
			if err != nil {
				return err
			}
			token, _ := cmd.Flags().GetString(flagToken)
			if token == "" {
				return fmt.Errorf("--%s is required", flagToken)
			}
			c, err := cc.apiClient()
			if err != nil {
				return err
			}
			receipt, err := c.Fund(cmd.Context(), token, addr, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd, receipt)
		},
	}
	cmd.Flags().String(flagToken, "", "faucet bearer token")
	return cmd
}
