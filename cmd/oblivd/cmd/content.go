package cmd

import (
	"fmt"
	"os"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/oblivion-chain/oblivion/contentstore"
)

const flagOutput = "output"

func openContentStore(logger log.Logger, cfg ContentConfig) (contentstore.Store, error) {
	switch cfg.Backend {
	case ContentBackendMemory:
		return contentstore.NewMemory(), nil
	case ContentBackendDir:
		dir, err := contentstore.NewDir(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return dir, nil
	case ContentBackendIPFS:
		var opts []contentstore.GatewayOption
		if cfg.IPFSToken != "" {
			opts = append(opts, contentstore.WithBearerToken(cfg.IPFSToken))
		}
		gw, err := contentstore.NewGateway(logger, cfg.IPFSURL, opts...)
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unknown content backend %q", cfg.Backend)
	}
}

// ContentCmd stores and fetches job artifacts in the configured content store.
func ContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Store and fetch job scripts, datasets and models",
	}
	cmd.AddCommand(contentPutCmd(), contentGetCmd())
	return cmd
}

func contentPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put [file]",
		Short: "Store a file and print its content address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			store, err := openContentStore(cc.Logger, cc.Config.Content)
			if err != nil {
				return err
			}
			cid, err := putFile(cmd, store, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cid)
			return nil
		},
	}
}

func contentGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [cid]",
		Short: "Fetch content by address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			store, err := openContentStore(cc.Logger, cc.Config.Content)
			if err != nil {
				return err
			}
			data, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out, _ := cmd.Flags().GetString(flagOutput); out != "" {
				return os.WriteFile(out, data, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringP(flagOutput, "o", "", "write to file instead of stdout")
	return cmd
}

func putFile(cmd *cobra.Command, store contentstore.Store, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > contentstore.MaxObjectSize {
		return "", fmt.Errorf("%s: %w", path, contentstore.ErrTooLarge)
	}
	return store.Put(cmd.Context(), data)
}
