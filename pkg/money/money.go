// Package money normalises wallet amounts and splits settlements.
package money

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

// Places is the precision every persisted amount is rounded to.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Normalize rounds amount to two places (half away from zero) and rejects
// anything that is not strictly positive afterwards.
func Normalize(amount decimal.Decimal) (decimal.Decimal, error) {
	rounded := amount.Round(Places)
	if !rounded.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero").
			WithDetails(map[string]any{"amount": amount.String()})
	}
	return rounded, nil
}

// Split divides gross into the commission and payee shares. adminShare is
// round2(gross*rate) and doctorShare takes the remainder, so the two always
// sum to gross exactly.
func Split(gross, rate decimal.Decimal) (adminShare, doctorShare decimal.Decimal, err error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be between 0 and 1").
			WithDetails(map[string]any{"rate": rate.String()})
	}
	gross, err = Normalize(gross)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	adminShare = gross.Mul(rate).Round(Places)
	doctorShare = gross.Sub(adminShare)
	return adminShare, doctorShare, nil
}

// Percent renders a rate as a whole-number percentage label ("30%").
func Percent(rate decimal.Decimal) string {
	return rate.Mul(hundred).Round(0).String() + "%"
}

// FromMinorUnits converts gateway integer amounts (cents, paise) to decimal.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -Places)
}

// ToMinorUnits converts a normalised amount to gateway integer units.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
