package domain

import (
	"math/bits"
	"strconv"
)

// Amount is a non-negative token quantity in the ledger's smallest unit.
type Amount uint64

// Add returns a+b or ErrAmountOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, ErrAmountOverflow
	}
	return Amount(sum), nil
}

// Sub returns a-b or ErrInsufficientBalance when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, ErrInsufficientBalance
	}
	return a - b, nil
}

// MulPercent returns a*pct/100, truncated toward zero.
func (a Amount) MulPercent(pct uint64) (Amount, error) {
	hi, lo := bits.Mul64(uint64(a), pct)
	if hi >= 100 {
		return 0, ErrAmountOverflow
	}
	q, _ := bits.Div64(hi, lo, 100)
	return Amount(q), nil
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if b < a {
		return b
	}
	return a
}

func (a Amount) String() string { return strconv.FormatUint(uint64(a), 10) }

// SumAmounts adds every value, failing on overflow.
func SumAmounts(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		var err error
		total, err = total.Add(v)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
