package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/paywatch/internal/ledger"
)

// QROptions holds flags for the qr command.
type QROptions struct {
	*RootOptions
	Recipient string
	Amount    string
	Currency  string
	Size      int
	Out       string
}

// QRResult is the qr command's output.
type QRResult struct {
	URI  string `json:"uri"`
	File string `json:"file,omitempty"`
}

// NewQRCommand creates the qr command.
func NewQRCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QROptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Render a payment request as a URI and QR code",
		Long: `Print the CIP-13 payment URI for a payment and optionally write it as a
PNG QR code a wallet can scan.

Example:
  paywatch qr --recipient addr_test1... --amount 20 --out pay.png`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQR(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "recipient address (required)")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "amount in display units")
	cmd.Flags().StringVar(&opts.Currency, "currency", string(ledger.ADA), "payment currency (ADA|DJED)")
	cmd.Flags().IntVar(&opts.Size, "size", 256, "PNG size in pixels")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the QR code PNG to this file")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}

func runQR(opts *QROptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	info, err := ledger.LookupCurrency(opts.Currency)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "invalid currency", err)
	}
	p := ledger.Payment{Currency: info.Code, Recipient: opts.Recipient}
	if opts.Amount != "" {
		if p.Amount, err = ledger.ParseAmount(opts.Amount, info.Code); err != nil {
			return out.fail(ExitCommandError, CodeInvalidInput, "invalid amount", err)
		}
	}

	uri, err := ledger.PaymentURI(p)
	if err != nil {
		return out.fail(ExitCommandError, CodeInvalidInput, "invalid payment", err)
	}
	result := QRResult{URI: uri}

	if opts.Out != "" {
		if opts.Size <= 0 {
			return out.fail(ExitCommandError, CodeInvalidInput, fmt.Sprintf("invalid size %d", opts.Size), nil)
		}
		png, err := ledger.PaymentQR(p, opts.Size)
		if err != nil {
			return out.fail(ExitFailure, CodeInvalidInput, "failed to render QR code", err)
		}
		if err := os.WriteFile(opts.Out, png, 0o644); err != nil {
			return out.fail(ExitCommandError, CodeInvalidInput, "failed to write QR code", err)
		}
		result.File = opts.Out
	}

	if opts.Format == "json" {
		return out.Success(result)
	}
	if result.File != "" {
		return out.Success(fmt.Sprintf("%s\nQR code written to %s", uri, result.File))
	}
	return out.Success(uri)
}
