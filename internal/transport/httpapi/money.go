package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// rupees — денежная сумма на проводе. Принимает число или строку вида "₹120.50".
type rupees struct {
	decimal.Decimal
}

func (r *rupees) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(bytes.TrimSpace(data), `"`))
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "₹", ""))
	if raw == "" || raw == "null" {
		r.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %q", raw)
	}
	r.Decimal = d
	return nil
}

// minor переводит рупии в пайсы с банковским округлением.
func (r rupees) minor() int64 {
	return r.Shift(2).RoundBank(0).IntPart()
}

// fromMinor — сумма в рупиях для ответа клиенту.
func fromMinor(minor int64) float64 {
	return decimal.New(minor, -2).InexactFloat64()
}
