package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oblivion-chain/oblivion/client"
	"github.com/oblivion-chain/oblivion/x/marketplace/types"
)

const (
	flagStatus    = "status"
	flagRequester = "requester"
	flagOffset    = "offset"
	flagLimit     = "limit"
)

type queryFunc func(ctx context.Context, cc *commandContext, c *client.Client, args []string) (any, error)

// QueryCmd groups the read-only views.
func QueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Marketplace query subcommands",
	}

	cmd.AddCommand(
		queryCommand("job [job-id]", "Show a job", cobra.ExactArgs(1),
			func(ctx context.Context, _ *commandContext, c *client.Client, args []string) (any, error) {
				id, err := parseJobID(args[0])
				if err != nil {
					return nil, err
				}
				return c.Job(ctx, id)
			}),
		queryCommand("job-count", "Number of jobs ever created", cobra.NoArgs,
			func(ctx context.Context, _ *commandContext, c *client.Client, _ []string) (any, error) {
				n, err := c.JobCount(ctx)
				return map[string]uint64{"count": n}, err
			}),
		queryCommand("pending-jobs", "Jobs waiting for a worker", cobra.NoArgs,
			func(ctx context.Context, _ *commandContext, c *client.Client, _ []string) (any, error) {
				return c.PendingJobs(ctx)
			}),
		listJobsCmd(),
		queryCommand("completed-models", "Completed jobs and their models", cobra.NoArgs,
			func(ctx context.Context, _ *commandContext, c *client.Client, _ []string) (any, error) {
				return c.CompletedModels(ctx)
			}),
		queryCommand("job-expired [job-id]", "Whether a processing job is past its timeout", cobra.ExactArgs(1),
			func(ctx context.Context, _ *commandContext, c *client.Client, args []string) (any, error) {
				id, err := parseJobID(args[0])
				if err != nil {
					return nil, err
				}
				expired, err := c.IsJobExpired(ctx, id)
				return map[string]bool{"expired": expired}, err
			}),
		queryCommand("worker [address|key]", "Show a worker", cobra.ExactArgs(1),
			func(ctx context.Context, cc *commandContext, c *client.Client, args []string) (any, error) {
				addr, err := cc.address(args[0])
				if err != nil {
					return nil, err
				}
				return c.Worker(ctx, addr)
			}),
		queryCommand("workers", "All registered workers", cobra.NoArgs,
			func(ctx context.Context, _ *commandContext, c *client.Client, _ []string) (any, error) {
				return c.Workers(ctx)
			}),
		queryCommand("active-workers", "Workers accepting jobs", cobra.NoArgs,
			func(ctx context.Context, _ *commandContext, c *client.Client, _ []string) (any, error) {
				return c.ActiveWorkers(ctx)
			}),
		queryCommand("worker-count", "Number of registered workers", cobra.NoArgs,
			func(ctx context.Context, _ *commandContext, c *client.Client, _ []string) (any, error) {
				n, err := c.WorkerCount(ctx)
				return map[string]uint64{"count": n}, err
			}),
		queryCommand("worker-history [address|key]", "Jobs claimed by a worker", cobra.ExactArgs(1),
			func(ctx context.Context, cc *commandContext, c *client.Client, args []string) (any, error) {
				addr, err := cc.address(args[0])
				if err != nil {
					return nil, err
				}
				return c.WorkerHistory(ctx, addr)
			}),
		queryCommand("worker-priority [address|key]", "Scheduling priority of a worker", cobra.ExactArgs(1),
			func(ctx context.Context, cc *commandContext, c *client.Client, args []string) (any, error) {
				addr, err := cc.address(args[0])
				if err != nil {
					return nil, err
				}
				priority, err := c.WorkerPriority(ctx, addr)
				return map[string]uint64{"priority": priority}, err
			}),
		queryCommand("stats", "Marketplace totals", cobra.NoArgs,
			func(ctx context.Context, _ *commandContext, c *client.Client, _ []string) (any, error) {
				return c.Stats(ctx)
			}),
		queryCommand("timeout [job-type]", "Claim timeout of a job type", cobra.ExactArgs(1),
			func(ctx context.Context, _ *commandContext, c *client.Client, args []string) (any, error) {
				jobType, err := types.ParseJobType(args[0])
				if err != nil {
					return nil, err
				}
				d, err := c.Timeout(ctx, jobType)
				return map[string]string{"job_type": jobType.String(), "timeout": d.String()}, err
			}),
		queryCommand("owner", "Marketplace owner and verifier", cobra.NoArgs,
			func(ctx context.Context, _ *commandContext, c *client.Client, _ []string) (any, error) {
				return c.Owner(ctx)
			}),
		queryCommand("params", "Marketplace parameters", cobra.NoArgs,
			func(ctx context.Context, _ *commandContext, c *client.Client, _ []string) (any, error) {
				return c.Params(ctx)
			}),
		queryCommand("account [address|key]", "Balance and sequence of an account", cobra.ExactArgs(1),
			func(ctx context.Context, cc *commandContext, c *client.Client, args []string) (any, error) {
				addr, err := cc.address(args[0])
				if err != nil {
					return nil, err
				}
				return c.Account(ctx, addr)
			}),
	)
	return cmd
}

func queryCommand(use, short string, args cobra.PositionalArgs, fn queryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			c, err := cc.apiClient()
			if err != nil {
				return err
			}
			res, err := fn(cmd.Context(), cc, c, args)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func listJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs, optionally filtered by status and requester",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			c, err := cc.apiClient()
			if err != nil {
				return err
			}

			var filter client.JobFilter
			if s, _ := cmd.Flags().GetString(flagStatus); s != "" {
				status, err := types.ParseJobStatus(s)
				if err != nil {
					return err
				}
				filter.Status = &status
			}
			if s, _ := cmd.Flags().GetString(flagRequester); s != "" {
				addr, err := cc.address(s)
				if err != nil {
					return err
				}
				filter.Requester = addr
			}
			filter.Offset, _ = cmd.Flags().GetInt(flagOffset)
			filter.Limit, _ = cmd.Flags().GetInt(flagLimit)

			jobs, total, err := c.ListJobs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"jobs": jobs, "total": total})
		},
	}
	cmd.Flags().String(flagStatus, "", "job status (pending|processing|completed|cancelled|slashed|expired)")
	cmd.Flags().String(flagRequester, "", "requester address or key name")
	cmd.Flags().Int(flagOffset, 0, "pagination offset")
	cmd.Flags().Int(flagLimit, 100, "page size")
	return cmd
}
