package math

import (
	"fmt"
	"math/big"
	"sync"
)

// DecimalConfig defines a fixed-point precision.
type DecimalConfig struct {
	DecimalPrecision int // Number of decimal places
}

var (
	// USD prices and USD values: value × 10^30 represents 1.0
	PriceConfig = DecimalConfig{DecimalPrecision: 30}
	// Chainlink oracle answers
	OracleConfig = DecimalConfig{DecimalPrecision: 8}
)

// Scale returns 10^DecimalPrecision. The returned value must not be mutated.
func (c DecimalConfig) Scale() *big.Int {
	return Pow10(c.DecimalPrecision)
}

const maxCachedPow = 78

var pow10Table = func() [maxCachedPow + 1]*big.Int {
	var t [maxCachedPow + 1]*big.Int
	ten := big.NewInt(10)
	t[0] = big.NewInt(1)
	for i := 1; i <= maxCachedPow; i++ {
		t[i] = new(big.Int).Mul(t[i-1], ten)
	}
	return t
}()

// Pow10 returns 10^n. Values up to 10^78 come from a shared table and
// must be treated as read-only.
func Pow10(n int) *big.Int {
	if n < 0 {
		panic(fmt.Sprintf("FATAL: negative power of ten: %d", n))
	}
	if n <= maxCachedPow {
		return pow10Table[n]
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Rescale converts v from one precision to another. Narrowing truncates
// toward zero.
func Rescale(v *big.Int, from, to DecimalConfig) *big.Int {
	diff := to.DecimalPrecision - from.DecimalPrecision
	switch {
	case diff > 0:
		return new(big.Int).Mul(v, Pow10(diff))
	case diff < 0:
		return new(big.Int).Quo(v, Pow10(-diff))
	default:
		return new(big.Int).Set(v)
	}
}

var bigPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getBig() *big.Int {
	return bigPool.Get().(*big.Int)
}

func putBig(v *big.Int) {
	v.SetInt64(0)
	bigPool.Put(v)
}

// MulDiv computes a * b / denominator, truncating toward zero. The
// intermediate product is unbounded, so no precision is lost before the
// division.
func MulDiv(a, b, denominator *big.Int) *big.Int {
	if denominator.Sign() == 0 {
		panic("FATAL: MulDiv by zero")
	}

	product := getBig()
	defer putBig(product)
	product.Mul(a, b)

	return new(big.Int).Quo(product, denominator)
}

// ParseAmount parses a base-10 integer string as emitted by the log decoder.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// MustAmount is ParseAmount for constants and test fixtures.
func MustAmount(s string) *big.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Units returns whole × 10^precision, e.g. Units(3350, PriceConfig) is $3350
// at 30 decimals.
func Units(whole int64, c DecimalConfig) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), c.Scale())
}
