package query

import (
	"math/big"

	"PerpIndexer/internal/entity"
	fpmath "PerpIndexer/internal/math"

	"github.com/shopspring/decimal"
)

// FormatUSD renders a 30-decimal USD integer as an exact decimal string,
// e.g. 3350e30 gives "3350".
func FormatUSD(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(fpmath.PriceConfig.DecimalPrecision)).String()
}

func amountUSD(a *entity.Amount) string {
	if a == nil {
		return "0"
	}
	return FormatUSD(a.Big())
}

func volumeUSD(v *entity.VolumeStat) map[string]string {
	if v == nil {
		return nil
	}
	return map[string]string{
		"swap":        amountUSD(v.Swap),
		"margin":      amountUSD(v.Margin),
		"liquidation": amountUSD(v.Liquidation),
		"mint":        amountUSD(v.Mint),
		"burn":        amountUSD(v.Burn),
	}
}

func feesUSD(f *entity.FeeStat) map[string]string {
	if f == nil {
		return nil
	}
	return map[string]string{
		"swap":   amountUSD(f.Swap),
		"margin": amountUSD(f.Margin),
	}
}
