package entity_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"PerpIndexer/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKinds = []entity.Kind{
	entity.KindTransaction, entity.KindPosition, entity.KindIncreasePosition,
	entity.KindDecreasePosition, entity.KindLiquidatePosition, entity.KindClosePosition,
	entity.KindCreateIncreasePosition, entity.KindCreateDecreasePosition, entity.KindSwap,
	entity.KindCollectMarginFees, entity.KindCollectSwapFees, entity.KindAddLiquidity,
	entity.KindRemoveLiquidity, entity.KindStakeEddx, entity.KindUnstakeEddx,
	entity.KindStakeElp, entity.KindUnstakeElp, entity.KindOrderAction,
	entity.KindChainlinkPrice, entity.KindUniswapPrice, entity.KindVolumeStat,
	entity.KindFeeStat, entity.KindCheckpoint,
}

func TestNew_KindMatches(t *testing.T) {
	for _, k := range allKinds {
		e, err := entity.New(k)
		require.NoError(t, err, k)
		assert.Equal(t, k, e.Kind())
	}

	_, err := entity.New("Balance")
	assert.Error(t, err)
}

func TestAmount_JSONIsDecimalString(t *testing.T) {
	huge, _ := new(big.Int).SetString("3350000000000000000000000000000000", 10)
	swap := &entity.Swap{ID: "0xabc:1", AmountIn: entity.NewAmount(huge)}

	data, err := entity.Encode(swap)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "3350000000000000000000000000000000", raw["amountIn"])
	assert.Nil(t, raw["amountOut"], "unset amounts encode as null")

	back, err := entity.Decode(entity.KindSwap, data)
	require.NoError(t, err)
	assert.Equal(t, 0, back.(*entity.Swap).AmountIn.Big().Cmp(huge))
	assert.Nil(t, back.(*entity.Swap).AmountOut)
}

func TestAmount_AcceptsBareNumber(t *testing.T) {
	var a entity.Amount
	require.NoError(t, json.Unmarshal([]byte(`12345678901234567890123`), &a))
	assert.Equal(t, "12345678901234567890123", a.String())

	assert.Error(t, json.Unmarshal([]byte(`"1.5"`), &a))
}

func TestAmount_CopySemantics(t *testing.T) {
	src := big.NewInt(10)
	a := entity.NewAmount(src)
	src.SetInt64(99)
	assert.Equal(t, int64(10), a.Big().Int64())

	out := a.Big()
	out.SetInt64(1)
	assert.Equal(t, int64(10), a.Big().Int64())

	a.Add(big.NewInt(5))
	a.Add(nil)
	assert.Equal(t, int64(15), a.Big().Int64())

	assert.Nil(t, entity.NewAmount(nil))
	var nilAmount *entity.Amount
	assert.Nil(t, nilAmount.Big())
}

func TestDecode_KindCarriedForSharedStructs(t *testing.T) {
	stake := entity.NewStake(entity.KindUnstakeElp)
	stake.ID = "0xabc:3"
	stake.Account = "0xuser"
	data, err := entity.Encode(stake)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"token"`, "ELP stakes carry no token")

	back, err := entity.Decode(entity.KindUnstakeElp, data)
	require.NoError(t, err)
	assert.Equal(t, entity.KindUnstakeElp, back.Kind())
	assert.Equal(t, "0xabc:3", back.EntityID())
}

func TestPosition_CorrelatedFlag(t *testing.T) {
	p := &entity.Position{Key: "k"}
	assert.False(t, p.Correlated())

	long := true
	p.IsLong = &long
	data, err := entity.Encode(p)
	require.NoError(t, err)
	back, err := entity.Decode(entity.KindPosition, data)
	require.NoError(t, err)
	assert.True(t, back.(*entity.Position).Correlated())
	assert.True(t, *back.(*entity.Position).IsLong)
}

func TestStatID(t *testing.T) {
	assert.Equal(t, "1699920000:daily", entity.StatID(1699920000, "daily"))
}
