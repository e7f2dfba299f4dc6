package journal_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/journal"
	"PerpIndexer/internal/observability"
	"PerpIndexer/internal/store"
	"PerpIndexer/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

// ============================================================================
// Test: Tag vocabulary
// ============================================================================

func TestTag_RequiredVocabulary(t *testing.T) {
	required := []string{
		"CreateIncreasePosition", "CreateDecreasePosition", "IncreasePosition",
		"DecreasePosition", "LiquidatePosition-Long", "LiquidatePosition-Short",
		"Swap", "BuyUSDG", "SellUSDG",
	}
	for _, name := range required {
		tag, err := journal.ParseTag(name)
		require.NoError(t, err, name)
		assert.True(t, tag.Valid())
		assert.Equal(t, name, tag.String())
	}

	_, err := journal.ParseTag("Deposit")
	assert.Error(t, err)
	assert.False(t, journal.TagUnknown.Valid())
}

func TestLiquidationTag(t *testing.T) {
	assert.Equal(t, "LiquidatePosition-Long", journal.LiquidationTag(true).String())
	assert.Equal(t, "LiquidatePosition-Short", journal.LiquidationTag(false).String())
}

// ============================================================================
// Test: Params encoding
// ============================================================================

func TestParams_GoldenEncoding(t *testing.T) {
	p := journal.NewParams().
		Str("key", "0xposkey").
		Str("collateralToken", "0xweth").
		Str("indexToken", "0xbtc").
		Bool("isLong", true).
		Int("size", mustBig("115792089237316195423570985008687907853269984665640564039457584007913129639935")).
		Int("collateral", nil).
		Int64("reserveAmount", 42).
		Int("markPrice", mustBig("3350000000000000000000000000000000"))

	testutil.AssertGolden(t, "liquidate_params.golden", []byte(p.String()))
}

func TestParams_DuplicateNameOverwritesInPlace(t *testing.T) {
	p := journal.NewParams().Str("a", "1").Str("b", "2").Str("a", "3")
	assert.Equal(t, `{"a":"3","b":"2"}`, p.String())
	assert.Equal(t, 2, p.Len())
}

func TestParams_EscapesStrings(t *testing.T) {
	p := journal.NewParams().Str(`we"ird`, "line\nbreak")

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(p.String()), &decoded))
	assert.Equal(t, "line\nbreak", decoded[`we"ird`])
}

func TestParams_Empty(t *testing.T) {
	assert.Equal(t, "{}", journal.NewParams().String())
}

// ============================================================================
// Test: Recorder
// ============================================================================

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	rec := journal.NewRecorder(s, metrics)

	out, err := rec.Record(ctx, journal.Action{
		ID:          "0xtx:4",
		Account:     "0xtrader",
		Tag:         journal.TagSwap,
		BlockNumber: 77,
		Timestamp:   1_700_000_000,
		TxHash:      "0xtx",
		Params:      journal.NewParams().Str("tokenIn", "0xusdc").Int("amountIn", big.NewInt(5)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Swap", out.Action)
	assert.Equal(t, `{"tokenIn":"0xusdc","amountIn":"5"}`, out.Params)

	stored, err := store.LoadAs[*entity.OrderAction](ctx, s, entity.KindOrderAction, "0xtx:4")
	require.NoError(t, err)
	assert.Equal(t, int64(77), stored.BlockNumber)
	assert.Equal(t, "0xtx", stored.Transaction)
	assert.Equal(t, 1.0, ptestutil.ToFloat64(metrics.ActionsRecorded.WithLabelValues("Swap")))
}

func TestRecorder_RejectsUnknownTag(t *testing.T) {
	rec := journal.NewRecorder(store.NewMemoryStore(), nil)
	_, err := rec.Record(context.Background(), journal.Action{ID: "0xtx:1", TxHash: "0xtx", Tag: journal.TagUnknown})
	assert.Error(t, err)
}

func TestRecorder_NilParamsIsEmptyObject(t *testing.T) {
	rec := journal.NewRecorder(store.NewMemoryStore(), nil)
	out, err := rec.Record(context.Background(), journal.Action{ID: "0xtx:1", TxHash: "0xtx", Tag: journal.TagStakeElp})
	require.NoError(t, err)
	assert.Equal(t, "{}", out.Params)
}

// ============================================================================
// Test: Validator
// ============================================================================

func TestValidator_RejectsNumericParams(t *testing.T) {
	v := journal.NewValidator()
	err := v.Validate(&entity.OrderAction{
		ID: "0xtx:1", Action: "Swap", Transaction: "0xtx",
		Params: `{"feeBasisPoints":10}`,
	})
	assert.Error(t, err, "bare JSON numbers lose precision in consumers")

	err = v.Validate(&entity.OrderAction{ID: "0xtx:1", Action: "Swap", Transaction: "0xtx", Params: `not json`})
	assert.Error(t, err)

	err = v.Validate(&entity.OrderAction{ID: "0xtx:1", Action: "Swap", Transaction: "0xtx", Params: `{"isLong":false,"size":"1"}`})
	assert.NoError(t, err)
}
