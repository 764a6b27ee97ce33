package bignum

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// MaxBits is the bit width of the upper bound.
const MaxBits = 1000

var (
	maxValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), MaxBits), big.NewInt(1))
	bigZero  = new(big.Int)
	bigOne   = big.NewInt(1)
)

// Int is a non-negative integer clamped to [0, Max].
// The zero value is 0.
type Int struct {
	v *big.Int // nil means 0; never mutated once set
}

// Zero returns 0.
func Zero() Int { return Int{} }

// One returns 1.
func One() Int { return Int{v: bigOne} }

// Max returns the upper bound 2^1000-1.
func Max() Int { return Int{v: maxValue} }

// clamp takes ownership of x and folds it into [0, Max].
func clamp(x *big.Int) Int {
	if x == nil || x.Sign() <= 0 {
		return Int{}
	}
	if x.Cmp(maxValue) >= 0 {
		return Int{v: maxValue}
	}
	return Int{v: x}
}

func (a Int) big() *big.Int {
	if a.v == nil {
		return bigZero
	}
	return a.v
}

// FromInt64 converts n, clamping negatives to 0.
func FromInt64(n int64) Int {
	if n <= 0 {
		return Int{}
	}
	return Int{v: big.NewInt(n)}
}

// FromUint64 converts n.
func FromUint64(n uint64) Int {
	if n == 0 {
		return Int{}
	}
	return Int{v: new(big.Int).SetUint64(n)}
}

// FromFloat64 floors f. NaN and non-positive values become 0, +Inf becomes Max.
func FromFloat64(f float64) Int {
	switch {
	case math.IsNaN(f) || f < 1:
		return Int{}
	case math.IsInf(f, 1):
		return Max()
	}
	if f < 1<<53 {
		return FromUint64(uint64(f))
	}
	n, _ := new(big.Float).SetFloat64(math.Floor(f)).Int(nil)
	return clamp(n)
}

// FromBig copies x into a clamped Int.
func FromBig(x *big.Int) Int {
	if x == nil {
		return Int{}
	}
	return clamp(new(big.Int).Set(x))
}

// Parse reads a base-10 integer. Negative values clamp to 0 and values above
// Max clamp to Max; a fractional part is truncated.
func Parse(s string) (Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Int{}, fmt.Errorf("parse bignum: empty string")
	}
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return clamp(n), nil
	}
	f, ok := new(big.Float).SetPrec(4096).SetString(s)
	if !ok {
		return Int{}, fmt.Errorf("parse bignum: invalid integer %q", s)
	}
	if f.IsInf() {
		if f.Sign() > 0 {
			return Max(), nil
		}
		return Int{}, nil
	}
	n, _ := f.Int(nil)
	return clamp(n), nil
}

// MustParse is like Parse but panics on malformed input.
// Use only in tests or with constant inputs.
func MustParse(s string) Int {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Add returns a+b saturated at Max.
func (a Int) Add(b Int) Int {
	return clamp(new(big.Int).Add(a.big(), b.big()))
}

// Sub returns a-b saturated at 0.
func (a Int) Sub(b Int) Int {
	return clamp(new(big.Int).Sub(a.big(), b.big()))
}

// Mul returns a*b saturated at Max.
func (a Int) Mul(b Int) Int {
	if a.IsZero() || b.IsZero() {
		return Int{}
	}
	return clamp(new(big.Int).Mul(a.big(), b.big()))
}

// Div returns the truncated quotient a/b, or 0 when b is 0.
func (a Int) Div(b Int) Int {
	if b.IsZero() {
		return Int{}
	}
	return clamp(new(big.Int).Quo(a.big(), b.big()))
}

// Pow returns a^exp. exp 0 yields 1, base 0 yields 0, base 1 yields 1.
// Multiplication stops early once the result reaches Max.
func (a Int) Pow(exp uint64) Int {
	switch {
	case exp == 0:
		return One()
	case a.IsZero():
		return Int{}
	case a.IsOne():
		return One()
	}
	result := One()
	for i := uint64(0); i < exp; i++ {
		result = result.Mul(a)
		if result.IsMax() {
			break
		}
	}
	return result
}

// Cmp returns -1, 0 or +1.
func (a Int) Cmp(b Int) int {
	return a.big().Cmp(b.big())
}

// Equal reports whether a == b.
func (a Int) Equal(b Int) bool { return a.Cmp(b) == 0 }

// Less reports whether a < b.
func (a Int) Less(b Int) bool { return a.Cmp(b) < 0 }

// Min returns the smaller of a and b.
func (a Int) Min(b Int) Int {
	if b.Less(a) {
		return b
	}
	return a
}

// IsZero reports whether a == 0.
func (a Int) IsZero() bool { return a.v == nil || a.v.Sign() == 0 }

// IsOne reports whether a == 1.
func (a Int) IsOne() bool { return a.v != nil && a.v.Cmp(bigOne) == 0 }

// IsMax reports whether a has saturated.
func (a Int) IsMax() bool { return a.v != nil && a.v.Cmp(maxValue) == 0 }

// Big returns a copy of the underlying value.
func (a Int) Big() *big.Int { return new(big.Int).Set(a.big()) }

// Int64 returns a as int64, saturating at math.MaxInt64.
func (a Int) Int64() int64 {
	if !a.big().IsInt64() {
		return math.MaxInt64
	}
	return a.big().Int64()
}

// Float64 returns the nearest float64. Max is below math.MaxFloat64 so the
// result is always finite.
func (a Int) Float64() float64 {
	if a.IsZero() {
		return 0
	}
	f, _ := new(big.Float).SetInt(a.v).Float64()
	return f
}

// String returns the base-10 representation.
func (a Int) String() string { return a.big().String() }

// IsSafe reports whether x lies within [0, Max]. Values produced by this
// package always do; the check exists for foreign *big.Int inputs.
func IsSafe(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(maxValue) <= 0
}

// Sum adds every value, saturating at Max.
func Sum(vals ...Int) Int {
	total := new(big.Int)
	for _, v := range vals {
		total.Add(total, v.big())
		if total.Cmp(maxValue) >= 0 {
			return Max()
		}
	}
	return clamp(total)
}
