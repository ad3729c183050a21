package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/paywatch/internal/ledger"
)

// Resolutions written to the abandoned archive.
const (
	resolutionFailed    = "failed"
	resolutionDismissed = "dismissed"
	resolutionCommitted = "committed:" // followed by the record id
)

// AbandonedOptions holds flags for the abandoned commands.
type AbandonedOptions struct {
	*RootOptions
	All     bool
	Dismiss bool
}

// AbandonedView is one archived operation in command output.
type AbandonedView struct {
	OperationView
	AbandonedAt time.Time  `json:"abandoned_at"`
	Resolution  string     `json:"resolution,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// ResolveResult is the output of abandoned resolve.
type ResolveResult struct {
	TxRef      string `json:"tx_ref"`
	Status     string `json:"status"`
	Resolution string `json:"resolution"`
	RecordID   string `json:"record_id,omitempty"`
}

// NewAbandonedCommand creates the abandoned command group.
func NewAbandonedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abandoned",
		Short: "Inspect and resolve timed-out payments",
		Long: `Payments still unconfirmed when the timeout expires are abandoned and
archived. A payment can confirm after that; resolve re-checks the chain and
applies the effect if it did.`,
	}
	cmd.AddCommand(newAbandonedListCommand(rootOpts))
	cmd.AddCommand(newAbandonedResolveCommand(rootOpts))
	return cmd
}

func newAbandonedListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AbandonedOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List abandoned payments",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAbandonedList(opts, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "include resolved entries")
	return cmd
}

func runAbandonedList(opts *AbandonedOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	a, err := openApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "failed to start", err)
	}
	defer a.close()

	entries, err := a.store.ListAbandoned(cmd.Context(), opts.All)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "failed to list abandoned payments", err)
	}
	views := make([]AbandonedView, 0, len(entries))
	for _, e := range entries {
		views = append(views, AbandonedView{
			OperationView: viewOf(e.Operation),
			AbandonedAt:   e.AbandonedAt.UTC(),
			Resolution:    e.Resolution,
			ResolvedAt:    e.ResolvedAt,
		})
	}

	if opts.Format == "json" {
		return out.Success(views)
	}
	if len(views) == 0 {
		return out.Success("No abandoned payments.")
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tOWNER\tTX\tABANDONED\tRESOLUTION")
	for _, v := range views {
		res := v.Resolution
		if res == "" {
			res = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.Kind, v.Owner, v.TxRef, v.AbandonedAt.Format(time.RFC3339), res)
	}
	tw.Flush()
	return out.Success(strings.TrimRight(b.String(), "\n"))
}

func newAbandonedResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AbandonedOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "resolve <tx-ref>",
		Short: "Re-check an abandoned payment and apply it if confirmed",
		Long: `Ask the chain once for the status of an abandoned payment.

  confirmed  the record is committed (idempotently) and the entry resolved
  failed     the entry is resolved as failed
  pending    nothing changes; exit code 1

--dismiss resolves the entry without asking the chain.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAbandonedResolve(opts, cmd, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.Dismiss, "dismiss", false, "resolve without checking the chain")
	return cmd
}

func runAbandonedResolve(opts *AbandonedOptions, cmd *cobra.Command, ref string) error {
	out := newFormatter(cmd, opts.RootOptions)
	ctx := cmd.Context()

	a, err := openApp(ctx, opts.RootOptions)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "failed to start", err)
	}
	defer a.close()

	entry, found, err := a.store.GetAbandoned(ctx, ref)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "failed to read abandoned payment", err)
	}
	if !found {
		return out.fail(ExitCommandError, CodeNotFound, "no abandoned payment "+ref, nil)
	}
	if entry.Resolution != "" {
		return out.fail(ExitCommandError, CodeInvalidInput,
			fmt.Sprintf("payment %s is already resolved (%s)", ref, entry.Resolution), nil)
	}

	result := ResolveResult{TxRef: ref}
	if opts.Dismiss {
		result.Status = "dismissed"
		result.Resolution = resolutionDismissed
	} else {
		status, err := a.checkOnce(ctx, ref)
		if err != nil {
			return out.fail(ExitFailure, CodeSubmission, "status check failed", err)
		}
		result.Status = string(status)

		switch status {
		case ledger.StatusConfirmed:
			res, err := a.committer.Commit(ctx, entry.Operation)
			if err != nil {
				return out.fail(ExitFailure, CodeSubmission, "commit failed", err)
			}
			result.RecordID = res.Record.ID
			result.Resolution = resolutionCommitted + res.Record.ID
		case ledger.StatusFailed:
			result.Resolution = resolutionFailed
		default:
			if opts.Format == "json" {
				_ = out.Success(result)
			}
			return NewExitError(ExitFailure, fmt.Sprintf("payment %s is still pending", ref))
		}
	}

	ok, err := a.store.ResolveAbandoned(ctx, ref, result.Resolution, time.Now())
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "failed to resolve", err)
	}
	if !ok {
		return out.fail(ExitFailure, CodeInvalidInput, "payment "+ref+" was resolved concurrently", nil)
	}

	if opts.Format == "json" {
		return out.Success(result)
	}
	return out.Success(fmt.Sprintf("Resolved %s: %s", ref, result.Resolution))
}

// checkOnce asks the chain for ref, bounded by the oracle wait.
func (a *app) checkOnce(ctx context.Context, ref string) (ledger.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Reconcile.OracleWait)
	defer cancel()
	return a.chain.CheckStatus(ctx, ref)
}
