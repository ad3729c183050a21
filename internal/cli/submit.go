package cli

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/paywatch/internal/checkout"
	"github.com/roach88/paywatch/internal/ledger"
	"github.com/roach88/paywatch/internal/payload"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Owner     string
	Kind      string
	Payload   string // YAML payload file
	Tx        string // signed transaction file, hex or raw CBOR
	Amount    string // display units
	Currency  string
	Recipient string
	Check     bool
}

// SubmitResult is the submit command's output.
type SubmitResult struct {
	OperationID string `json:"operation_id"`
	TxRef       string `json:"tx_ref"`
	State       string `json:"state"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Broadcast a signed payment and track it",
		Long: `Validate a payload, broadcast its signed payment transaction, and store
the pending operation for the reconciliation loop.

The payload file is YAML in the shape of the kind's schema. The transaction
file holds the wallet-signed CBOR, either raw or hex encoded.

Example:
  paywatch submit --owner addr_test1... --kind job --payload job.yaml \
    --tx signed.cbor --amount 25 --currency ADA --recipient addr_test1... --check`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner wallet address (required)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "operation kind: job, extend, project, funding (required)")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "YAML payload file (required)")
	cmd.Flags().StringVar(&opts.Tx, "tx", "", "signed transaction file (required)")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "payment amount in display units, e.g. 25 or 12.5 (required)")
	cmd.Flags().StringVar(&opts.Currency, "currency", string(ledger.ADA), "payment currency (ADA|DJED)")
	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "recipient address (required)")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "check the chain once right after submitting")
	for _, name := range []string{"owner", "kind", "payload", "tx", "amount", "recipient"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	req, err := buildRequest(opts)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "invalid submission", err)
	}

	a, err := openApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "failed to start", err)
	}
	defer a.close()

	co, err := a.checkout()
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "failed to load payload schema", err)
	}

	receipt, err := co.Pay(cmd.Context(), req)
	if err != nil {
		var verr *payload.ValidationError
		switch {
		case errors.As(err, &verr), errors.Is(err, checkout.ErrInvalidPayment):
			return out.fail(ExitCommandError, CodeInvalidInput, "invalid submission", err)
		case checkout.IsSubmissionError(err):
			return out.fail(ExitFailure, CodeSubmission, "payment was not submitted", err)
		default:
			return out.fail(ExitFailure, CodeSubmission, "payment submitted but not tracked: "+receipt.Operation.TxRef, err)
		}
	}

	result := SubmitResult{
		OperationID: string(receipt.Operation.ID),
		TxRef:       receipt.Operation.TxRef,
		State:       string(receipt.State),
	}
	if opts.Format == "json" {
		return out.Success(result)
	}
	return out.Success(fmt.Sprintf("Submitted %s\n  operation: %s\n  state:     %s",
		result.TxRef, result.OperationID, result.State))
}

// buildRequest reads the payload and transaction files into a checkout request.
func buildRequest(opts *SubmitOptions) (checkout.Request, error) {
	kind, err := payload.ParseKind(opts.Kind)
	if err != nil {
		return checkout.Request{}, err
	}

	f, err := os.Open(opts.Payload)
	if err != nil {
		return checkout.Request{}, fmt.Errorf("read payload: %w", err)
	}
	defer f.Close()
	p, err := payload.DecodeYAML(kind, f)
	if err != nil {
		return checkout.Request{}, err
	}

	info, err := ledger.LookupCurrency(opts.Currency)
	if err != nil {
		return checkout.Request{}, err
	}
	amount, err := ledger.ParseAmount(opts.Amount, info.Code)
	if err != nil {
		return checkout.Request{}, err
	}

	tx, err := readSignedTx(opts.Tx)
	if err != nil {
		return checkout.Request{}, err
	}

	return checkout.Request{
		Owner:   opts.Owner,
		Kind:    kind,
		Payload: p,
		Payment: ledger.Payment{
			Amount:    amount,
			Currency:  info.Code,
			Recipient: opts.Recipient,
			SignedTx:  tx,
		},
		CheckNow: opts.Check,
	}, nil
}

// readSignedTx accepts a hex text file (as exported by cardano-cli) or raw CBOR.
func readSignedTx(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("transaction file %s is empty", path)
	}
	if decoded, err := hex.DecodeString(string(trimmed)); err == nil {
		return decoded, nil
	}
	return data, nil
}
