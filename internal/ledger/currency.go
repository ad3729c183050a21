package ledger

import (
	"fmt"
	"math/big"
	"strings"
)

// Currency is one of the two tokens the marketplace accepts.
type Currency string

const (
	// ADA is the native Cardano token; smallest unit is the lovelace.
	ADA Currency = "ADA"

	// DJED is a native-asset stablecoin.
	DJED Currency = "DJED"
)

// CurrencyInfo fixes the amount semantics of a currency.
type CurrencyInfo struct {
	Code     Currency
	Decimals int
	// Unit is the on-chain asset unit (policy id + hex asset name).
	// Empty for ADA.
	Unit string
}

var currencies = map[Currency]CurrencyInfo{
	ADA:  {Code: ADA, Decimals: 6},
	DJED: {Code: DJED, Decimals: 6, Unit: "8db269c3ec630e06ae29f74bc39edd1f87c819f1056206e879a1cd61446a65644d6963726f555344"},
}

// LookupCurrency returns the info for a currency code (case-insensitive).
func LookupCurrency(code string) (CurrencyInfo, error) {
	info, ok := currencies[Currency(strings.ToUpper(strings.TrimSpace(code)))]
	if !ok {
		return CurrencyInfo{}, fmt.Errorf("unsupported currency %q: must be ADA or DJED", code)
	}
	return info, nil
}

// ParseAmount converts a display amount ("20", "12.5") into the smallest
// unit of the currency. More fractional digits than the currency allows is
// an error rather than a silent rounding.
func ParseAmount(display string, c Currency) (int64, error) {
	info, err := LookupCurrency(string(c))
	if err != nil {
		return 0, err
	}

	s := strings.TrimSpace(display)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("invalid amount %q", display)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > info.Decimals {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", display, info.Decimals)
	}
	frac += strings.Repeat("0", info.Decimals-len(frac))
	if whole == "" {
		whole = "0"
	}

	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return 0, fmt.Errorf("invalid amount %q", display)
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", display)
	}
	v := n.Int64()
	if v <= 0 {
		return 0, fmt.Errorf("amount %q must be positive", display)
	}
	return v, nil
}

// FormatAmount renders a smallest-unit amount in display units,
// trimming trailing zeros ("20000000" lovelace -> "20").
func FormatAmount(amount int64, c Currency) string {
	info, err := LookupCurrency(string(c))
	if err != nil || info.Decimals == 0 {
		return fmt.Sprintf("%d", amount)
	}

	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%0*d", info.Decimals+1, amount)
	whole, frac := s[:len(s)-info.Decimals], strings.TrimRight(s[len(s)-info.Decimals:], "0")

	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
