package codec

import (
	"fmt"
	"math"
	"math/big"
)

// NoPTS marks an undefined timestamp.
const NoPTS int64 = math.MinInt64

// A Rational is a time base: one tick lasts Num/Den seconds.
type Rational struct {
	Num int
	Den int
}

// Millisecond is the time base of timestamps supplied by callers.
var Millisecond = Rational{1, 1000}

// NewRational returns num/den.
func NewRational(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Valid reports whether the rational can be used as a time base.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Rescale converts v from the time base r into the time base to, rounding to
// the nearest tick with halves away from zero. NoPTS is preserved.
func (r Rational) Rescale(v int64, to Rational) int64 {
	if v == NoPTS {
		return NoPTS
	}
	if r == to {
		return v
	}
	num := int64(r.Num) * int64(to.Den)
	den := int64(r.Den) * int64(to.Num)
	if p, ok := mulNoOverflow(v, num); ok {
		return divRound(p, den)
	}
	return bigRescale(v, num, den)
}

// Compare compares a in time base ra with b in time base rb and returns -1, 0
// or 1.
func Compare(a int64, ra Rational, b int64, rb Rational) int {
	x := new(big.Int).Mul(big.NewInt(a), big.NewInt(int64(ra.Num)*int64(rb.Den)))
	y := new(big.Int).Mul(big.NewInt(b), big.NewInt(int64(rb.Num)*int64(ra.Den)))
	return x.Cmp(y)
}

func mulNoOverflow(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return p, true
}

func divRound(n, d int64) int64 {
	if d < 0 {
		n, d = -n, -d
	}
	if n >= 0 {
		return (n + d/2) / d
	}
	return -((-n + d/2) / d)
}

func bigRescale(v, num, den int64) int64 {
	n := new(big.Int).Mul(big.NewInt(v), big.NewInt(num))
	d := big.NewInt(den)
	half := new(big.Int).Quo(d, big.NewInt(2))
	if n.Sign() >= 0 {
		n.Add(n, half)
	} else {
		n.Sub(n, half)
	}
	return n.Quo(n, d).Int64()
}
