package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/paywatch/internal/pending"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Check bool
}

// OperationView is one pending operation in command output.
type OperationView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Owner       string    `json:"owner"`
	TxRef       string    `json:"tx_ref"`
	State       string    `json:"state"`
	SubmittedAt time.Time `json:"submitted_at"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
}

func viewOf(op pending.Operation) OperationView {
	return OperationView{
		ID:          string(op.ID),
		Kind:        string(op.Kind),
		Owner:       op.Owner,
		TxRef:       op.TxRef,
		State:       string(op.State),
		SubmittedAt: op.SubmittedAt.UTC(),
		Attempts:    op.Attempts,
		LastError:   op.LastError,
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List pending operations",
		Long: `List every stored pending operation, oldest first.

With --check, one reconciliation cycle runs first: confirmed payments are
committed, failed and timed-out ones are reported and cleared.

Example:
  paywatch status
  paywatch status --check --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "run one reconciliation cycle before listing")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)
	ctx := cmd.Context()

	a, err := openApp(ctx, opts.RootOptions)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "failed to start", err)
	}
	defer a.close()

	if opts.Check {
		remaining, err := a.loop.Cycle(ctx)
		if err != nil {
			return out.fail(ExitFailure, CodeInvalidInput, "reconciliation cycle failed", err)
		}
		out.VerboseLog("cycle complete, %d remaining", remaining)
	}

	ops, err := a.store.ListOperations(ctx)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "failed to list operations", err)
	}
	views := make([]OperationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, viewOf(op))
	}

	if opts.Format == "json" {
		return out.Success(views)
	}
	if len(views) == 0 {
		return out.Success("No pending operations.")
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tOWNER\tTX\tSTATE\tAGE\tATTEMPTS")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			v.Kind, v.Owner, v.TxRef, v.State, time.Since(v.SubmittedAt).Truncate(time.Second), v.Attempts)
	}
	tw.Flush()
	return out.Success(strings.TrimRight(b.String(), "\n"))
}
