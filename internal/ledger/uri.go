package ledger

import (
	"fmt"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// PaymentURI renders a CIP-13 payment URI for an ADA payment, e.g.
// "web+cardano:addr1...?amount=20". Native-token payments have no CIP-13
// amount form, so only the address is encoded for them.
func PaymentURI(p Payment) (string, error) {
	if p.Recipient == "" {
		return "", fmt.Errorf("payment uri: recipient is required")
	}

	uri := "web+cardano:" + p.Recipient
	if p.Currency == ADA && p.Amount > 0 {
		q := url.Values{}
		q.Set("amount", FormatAmount(p.Amount, ADA))
		uri += "?" + q.Encode()
	}
	return uri, nil
}

// PaymentQR encodes the payment URI as a PNG QR code of size x size pixels.
func PaymentQR(p Payment, size int) ([]byte, error) {
	uri, err := PaymentURI(p)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("payment qr: %w", err)
	}
	return png, nil
}
