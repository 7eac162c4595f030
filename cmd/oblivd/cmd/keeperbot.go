package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oblivion-chain/oblivion/api"
	"github.com/oblivion-chain/oblivion/keeperbot"
)

const (
	flagInterval    = "interval"
	flagMetricsAddr = "metrics-addr"
)

// KeeperBotCmd runs the expiry bot against a node.
func KeeperBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keeper-bot",
		Short: "Expire timed-out jobs on a node",
		Long: `keeper-bot polls the node for processing jobs and sends expire-job for every
job whose claim timed out, signing with the key named by --from. The bot pays no
fee and earns nothing; the worker's forfeited stake goes to the treasury.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString(flagFrom)
			signer, err := cc.signer(cmd, name)
			if err != nil {
				return err
			}

			cfg := cc.Config.KeeperBot
			if cmd.Flags().Changed(flagInterval) {
				cfg.Interval, _ = cmd.Flags().GetDuration(flagInterval)
			}
			bot, err := keeperbot.New(cc.Logger, signer.Client(), signer, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr, _ := cmd.Flags().GetString(flagMetricsAddr); addr != "" {
				if _, err := api.StartMetricsServer(ctx, cc.Logger, addr, nil); err != nil {
					return err
				}
			}
			cc.Logger.Info("keeper bot started", "address", signer.Address().String(), "interval", cfg.Interval)
			return bot.Run(ctx)
		},
	}
	cmd.Flags().String(flagFrom, "", "name of the signing key")
	cmd.Flags().Duration(flagInterval, 0, "scan interval (overrides keeper_bot.interval)")
	cmd.Flags().String(flagMetricsAddr, "", "serve Prometheus metrics on this address")
	return cmd
}
