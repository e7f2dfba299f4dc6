package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"PerpIndexer/internal/config"
	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/pricing"
)

// ErrMalformed marks a payload that can never be processed. Such messages
// are acked and dropped rather than redelivered.
var ErrMalformed = errors.New("malformed payload")

// ParseRawEvent converts a RawEvent (JSON bytes + event type) into a typed event.Event.
// The ingestion shell validates, parses, and converts raw events before
// sending them to the engine.
func ParseRawEvent(raw RawEvent, eventType event.EventType) (event.Event, error) {
	switch eventType {
	case event.EventTypeIncreasePosition:
		return parseIncreasePosition(raw.Data)
	case event.EventTypeDecreasePosition:
		return parseDecreasePosition(raw.Data)
	case event.EventTypeLiquidatePosition:
		return parseLiquidatePosition(raw.Data)
	case event.EventTypeUpdatePosition:
		return parseUpdatePosition(raw.Data)
	case event.EventTypeClosePosition:
		return parseClosePosition(raw.Data)
	case event.EventTypeSwap:
		return parseSwap(raw.Data)
	case event.EventTypeCollectMarginFees:
		return parseCollectMarginFees(raw.Data)
	case event.EventTypeCollectSwapFees:
		return parseCollectSwapFees(raw.Data)
	case event.EventTypeCreateIncreasePosition:
		return parseCreateIncreasePosition(raw.Data)
	case event.EventTypeCreateDecreasePosition:
		return parseCreateDecreasePosition(raw.Data)
	case event.EventTypeAddLiquidity:
		return parseAddLiquidity(raw.Data)
	case event.EventTypeRemoveLiquidity:
		return parseRemoveLiquidity(raw.Data)
	case event.EventTypeStakeEddx:
		return parseStakeEddx(raw.Data)
	case event.EventTypeUnstakeEddx:
		return parseUnstakeEddx(raw.Data)
	case event.EventTypeStakeElp:
		return parseStakeElp(raw.Data)
	case event.EventTypeUnstakeElp:
		return parseUnstakeElp(raw.Data)
	default:
		return nil, fmt.Errorf("%w: unknown event type %s", ErrMalformed, eventType)
	}
}

// --- JSON wire formats ---
// Upstream publishes each decoded log as an envelope plus a params object.
// Field names are camelCase to match the contract ABIs. Integer params
// are decimal strings; bare JSON numbers are accepted too.

type logJSON[P any] struct {
	TxHash         string `json:"transactionHash"`
	LogIndex       *int64 `json:"logIndex"`
	BlockNumber    int64  `json:"blockNumber"`
	BlockTimestamp int64  `json:"blockTimestamp"`
	TxIndex        int64  `json:"transactionIndex"`
	From           string `json:"from"`
	To             string `json:"to"`
	Params         P      `json:"params"`
}

// decodeLog unmarshals the envelope and params and validates the envelope.
func decodeLog[P any](data []byte, name string) (event.Ref, P, error) {
	var j logJSON[P]
	if err := json.Unmarshal(data, &j); err != nil {
		return event.Ref{}, j.Params, fmt.Errorf("%w: parse %s: %v", ErrMalformed, name, err)
	}
	if j.TxHash == "" {
		return event.Ref{}, j.Params, fmt.Errorf("%w: %s: missing transactionHash", ErrMalformed, name)
	}
	if j.LogIndex == nil || *j.LogIndex < 0 {
		return event.Ref{}, j.Params, fmt.Errorf("%w: %s: missing or negative logIndex", ErrMalformed, name)
	}
	ref := event.Ref{
		TxHash:         strings.ToLower(j.TxHash),
		LogIndex:       *j.LogIndex,
		BlockNumber:    j.BlockNumber,
		BlockTimestamp: j.BlockTimestamp,
		TxIndex:        j.TxIndex,
		TxFrom:         config.NormalizeAddress(j.From),
		TxTo:           config.NormalizeAddress(j.To),
	}
	return ref, j.Params, nil
}

// fields collects missing required integers so one error names them all.
type fields struct {
	name    string
	missing []string
}

func (f *fields) int(field string, a *entity.Amount) *big.Int {
	if a == nil {
		f.missing = append(f.missing, field)
		return nil
	}
	return a.Big()
}

func (f *fields) err() error {
	if len(f.missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: missing %s", ErrMalformed, f.name, strings.Join(f.missing, ", "))
}

func addr(s string) string { return config.NormalizeAddress(s) }

// --- Vault ---

type positionDeltaJSON struct {
	Key             string         `json:"key"`
	Account         string         `json:"account"`
	CollateralToken string         `json:"collateralToken"`
	IndexToken      string         `json:"indexToken"`
	CollateralDelta *entity.Amount `json:"collateralDelta"`
	SizeDelta       *entity.Amount `json:"sizeDelta"`
	IsLong          bool           `json:"isLong"`
	Price           *entity.Amount `json:"price"`
	Fee             *entity.Amount `json:"fee"`
}

func parseIncreasePosition(data []byte) (*event.IncreasePosition, error) {
	ref, p, err := decodeLog[positionDeltaJSON](data, "IncreasePosition")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "IncreasePosition"}
	evt := &event.IncreasePosition{
		Ref:             ref,
		Key:             addr(p.Key),
		Account:         addr(p.Account),
		CollateralToken: addr(p.CollateralToken),
		IndexToken:      addr(p.IndexToken),
		CollateralDelta: f.int("collateralDelta", p.CollateralDelta),
		SizeDelta:       f.int("sizeDelta", p.SizeDelta),
		IsLong:          p.IsLong,
		Price:           f.int("price", p.Price),
		Fee:             f.int("fee", p.Fee),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

func parseDecreasePosition(data []byte) (*event.DecreasePosition, error) {
	ref, p, err := decodeLog[positionDeltaJSON](data, "DecreasePosition")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "DecreasePosition"}
	evt := &event.DecreasePosition{
		Ref:             ref,
		Key:             addr(p.Key),
		Account:         addr(p.Account),
		CollateralToken: addr(p.CollateralToken),
		IndexToken:      addr(p.IndexToken),
		CollateralDelta: f.int("collateralDelta", p.CollateralDelta),
		SizeDelta:       f.int("sizeDelta", p.SizeDelta),
		IsLong:          p.IsLong,
		Price:           f.int("price", p.Price),
		Fee:             f.int("fee", p.Fee),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

type liquidateJSON struct {
	Key             string         `json:"key"`
	Account         string         `json:"account"`
	CollateralToken string         `json:"collateralToken"`
	IndexToken      string         `json:"indexToken"`
	IsLong          bool           `json:"isLong"`
	Size            *entity.Amount `json:"size"`
	Collateral      *entity.Amount `json:"collateral"`
	ReserveAmount   *entity.Amount `json:"reserveAmount"`
	RealisedPnl     *entity.Amount `json:"realisedPnl"`
	MarkPrice       *entity.Amount `json:"markPrice"`
}

func parseLiquidatePosition(data []byte) (*event.LiquidatePosition, error) {
	ref, p, err := decodeLog[liquidateJSON](data, "LiquidatePosition")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "LiquidatePosition"}
	evt := &event.LiquidatePosition{
		Ref:             ref,
		Key:             addr(p.Key),
		Account:         addr(p.Account),
		CollateralToken: addr(p.CollateralToken),
		IndexToken:      addr(p.IndexToken),
		IsLong:          p.IsLong,
		Size:            f.int("size", p.Size),
		Collateral:      f.int("collateral", p.Collateral),
		ReserveAmount:   f.int("reserveAmount", p.ReserveAmount),
		RealisedPnl:     f.int("realisedPnl", p.RealisedPnl),
		MarkPrice:       f.int("markPrice", p.MarkPrice),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

type positionSnapshotJSON struct {
	Key              string         `json:"key"`
	Size             *entity.Amount `json:"size"`
	Collateral       *entity.Amount `json:"collateral"`
	AveragePrice     *entity.Amount `json:"averagePrice"`
	EntryFundingRate *entity.Amount `json:"entryFundingRate"`
	ReserveAmount    *entity.Amount `json:"reserveAmount"`
	RealisedPnl      *entity.Amount `json:"realisedPnl"`
	MarkPrice        *entity.Amount `json:"markPrice"`
}

func parseUpdatePosition(data []byte) (*event.UpdatePosition, error) {
	ref, p, err := decodeLog[positionSnapshotJSON](data, "UpdatePosition")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "UpdatePosition"}
	evt := &event.UpdatePosition{
		Ref:              ref,
		Key:              addr(p.Key),
		Size:             f.int("size", p.Size),
		Collateral:       f.int("collateral", p.Collateral),
		AveragePrice:     f.int("averagePrice", p.AveragePrice),
		EntryFundingRate: f.int("entryFundingRate", p.EntryFundingRate),
		ReserveAmount:    f.int("reserveAmount", p.ReserveAmount),
		RealisedPnl:      f.int("realisedPnl", p.RealisedPnl),
		MarkPrice:        f.int("markPrice", p.MarkPrice),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

func parseClosePosition(data []byte) (*event.ClosePosition, error) {
	ref, p, err := decodeLog[positionSnapshotJSON](data, "ClosePosition")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "ClosePosition"}
	evt := &event.ClosePosition{
		Ref:              ref,
		Key:              addr(p.Key),
		Size:             f.int("size", p.Size),
		Collateral:       f.int("collateral", p.Collateral),
		AveragePrice:     f.int("averagePrice", p.AveragePrice),
		EntryFundingRate: f.int("entryFundingRate", p.EntryFundingRate),
		ReserveAmount:    f.int("reserveAmount", p.ReserveAmount),
		RealisedPnl:      f.int("realisedPnl", p.RealisedPnl),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

type swapJSON struct {
	Account            string         `json:"account"`
	TokenIn            string         `json:"tokenIn"`
	TokenOut           string         `json:"tokenOut"`
	AmountIn           *entity.Amount `json:"amountIn"`
	AmountOut          *entity.Amount `json:"amountOut"`
	AmountOutAfterFees *entity.Amount `json:"amountOutAfterFees"`
	FeeBasisPoints     *entity.Amount `json:"feeBasisPoints"`
}

func parseSwap(data []byte) (*event.Swap, error) {
	ref, p, err := decodeLog[swapJSON](data, "Swap")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "Swap"}
	evt := &event.Swap{
		Ref:                ref,
		Account:            addr(p.Account),
		TokenIn:            addr(p.TokenIn),
		TokenOut:           addr(p.TokenOut),
		AmountIn:           f.int("amountIn", p.AmountIn),
		AmountOut:          f.int("amountOut", p.AmountOut),
		AmountOutAfterFees: f.int("amountOutAfterFees", p.AmountOutAfterFees),
		FeeBasisPoints:     f.int("feeBasisPoints", p.FeeBasisPoints),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

type collectFeesJSON struct {
	Token     string         `json:"token"`
	FeeUsd    *entity.Amount `json:"feeUsd"`
	FeeTokens *entity.Amount `json:"feeTokens"`
}

func parseCollectMarginFees(data []byte) (*event.CollectMarginFees, error) {
	ref, p, err := decodeLog[collectFeesJSON](data, "CollectMarginFees")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "CollectMarginFees"}
	evt := &event.CollectMarginFees{
		Ref:       ref,
		Token:     addr(p.Token),
		FeeUsd:    f.int("feeUsd", p.FeeUsd),
		FeeTokens: f.int("feeTokens", p.FeeTokens),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

func parseCollectSwapFees(data []byte) (*event.CollectSwapFees, error) {
	ref, p, err := decodeLog[collectFeesJSON](data, "CollectSwapFees")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "CollectSwapFees"}
	evt := &event.CollectSwapFees{
		Ref:       ref,
		Token:     addr(p.Token),
		FeeUsd:    f.int("feeUsd", p.FeeUsd),
		FeeTokens: f.int("feeTokens", p.FeeTokens),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

// --- PositionRouter ---

type createIncreaseJSON struct {
	Account         string         `json:"account"`
	Path            []string       `json:"path"`
	IndexToken      string         `json:"indexToken"`
	AmountIn        *entity.Amount `json:"amountIn"`
	MinOut          *entity.Amount `json:"minOut"`
	SizeDelta       *entity.Amount `json:"sizeDelta"`
	IsLong          bool           `json:"isLong"`
	AcceptablePrice *entity.Amount `json:"acceptablePrice"`
	ExecutionFee    *entity.Amount `json:"executionFee"`
}

func parseCreateIncreasePosition(data []byte) (*event.CreateIncreasePosition, error) {
	ref, p, err := decodeLog[createIncreaseJSON](data, "CreateIncreasePosition")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "CreateIncreasePosition"}
	evt := &event.CreateIncreasePosition{
		Ref:             ref,
		Account:         addr(p.Account),
		Path:            normalizePath(p.Path),
		IndexToken:      addr(p.IndexToken),
		AmountIn:        f.int("amountIn", p.AmountIn),
		MinOut:          f.int("minOut", p.MinOut),
		SizeDelta:       f.int("sizeDelta", p.SizeDelta),
		IsLong:          p.IsLong,
		AcceptablePrice: f.int("acceptablePrice", p.AcceptablePrice),
		ExecutionFee:    f.int("executionFee", p.ExecutionFee),
	}
	if len(evt.Path) == 0 {
		f.missing = append(f.missing, "path")
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

type createDecreaseJSON struct {
	Account         string         `json:"account"`
	Path            []string       `json:"path"`
	IndexToken      string         `json:"indexToken"`
	CollateralDelta *entity.Amount `json:"collateralDelta"`
	SizeDelta       *entity.Amount `json:"sizeDelta"`
	IsLong          bool           `json:"isLong"`
	Receiver        string         `json:"receiver"`
	AcceptablePrice *entity.Amount `json:"acceptablePrice"`
	MinOut          *entity.Amount `json:"minOut"`
	ExecutionFee    *entity.Amount `json:"executionFee"`
}

func parseCreateDecreasePosition(data []byte) (*event.CreateDecreasePosition, error) {
	ref, p, err := decodeLog[createDecreaseJSON](data, "CreateDecreasePosition")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "CreateDecreasePosition"}
	evt := &event.CreateDecreasePosition{
		Ref:             ref,
		Account:         addr(p.Account),
		Path:            normalizePath(p.Path),
		IndexToken:      addr(p.IndexToken),
		CollateralDelta: f.int("collateralDelta", p.CollateralDelta),
		SizeDelta:       f.int("sizeDelta", p.SizeDelta),
		IsLong:          p.IsLong,
		Receiver:        addr(p.Receiver),
		AcceptablePrice: f.int("acceptablePrice", p.AcceptablePrice),
		MinOut:          f.int("minOut", p.MinOut),
		ExecutionFee:    f.int("executionFee", p.ExecutionFee),
	}
	if len(evt.Path) == 0 {
		f.missing = append(f.missing, "path")
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

func normalizePath(path []string) []string {
	out := make([]string, len(path))
	for i, p := range path {
		out[i] = addr(p)
	}
	return out
}

// --- ElpManager ---

type addLiquidityJSON struct {
	Account    string         `json:"account"`
	Token      string         `json:"token"`
	Amount     *entity.Amount `json:"amount"`
	AumInUsdg  *entity.Amount `json:"aumInUsdg"`
	ElpSupply  *entity.Amount `json:"elpSupply"`
	UsdgAmount *entity.Amount `json:"usdgAmount"`
	MintAmount *entity.Amount `json:"mintAmount"`
}

func parseAddLiquidity(data []byte) (*event.AddLiquidity, error) {
	ref, p, err := decodeLog[addLiquidityJSON](data, "AddLiquidity")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "AddLiquidity"}
	evt := &event.AddLiquidity{
		Ref:        ref,
		Account:    addr(p.Account),
		Token:      addr(p.Token),
		Amount:     f.int("amount", p.Amount),
		AumInUsdg:  f.int("aumInUsdg", p.AumInUsdg),
		ElpSupply:  f.int("elpSupply", p.ElpSupply),
		UsdgAmount: f.int("usdgAmount", p.UsdgAmount),
		MintAmount: f.int("mintAmount", p.MintAmount),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

type removeLiquidityJSON struct {
	Account    string         `json:"account"`
	Token      string         `json:"token"`
	ElpAmount  *entity.Amount `json:"elpAmount"`
	AumInUsdg  *entity.Amount `json:"aumInUsdg"`
	ElpSupply  *entity.Amount `json:"elpSupply"`
	UsdgAmount *entity.Amount `json:"usdgAmount"`
	AmountOut  *entity.Amount `json:"amountOut"`
}

func parseRemoveLiquidity(data []byte) (*event.RemoveLiquidity, error) {
	ref, p, err := decodeLog[removeLiquidityJSON](data, "RemoveLiquidity")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "RemoveLiquidity"}
	evt := &event.RemoveLiquidity{
		Ref:        ref,
		Account:    addr(p.Account),
		Token:      addr(p.Token),
		ElpAmount:  f.int("elpAmount", p.ElpAmount),
		AumInUsdg:  f.int("aumInUsdg", p.AumInUsdg),
		ElpSupply:  f.int("elpSupply", p.ElpSupply),
		UsdgAmount: f.int("usdgAmount", p.UsdgAmount),
		AmountOut:  f.int("amountOut", p.AmountOut),
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

// --- RewardRouter ---

type stakeJSON struct {
	Account string         `json:"account"`
	Token   string         `json:"token"`
	Amount  *entity.Amount `json:"amount"`
}

func parseStakeEddx(data []byte) (*event.StakeEddx, error) {
	ref, p, err := decodeLog[stakeJSON](data, "StakeEddx")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "StakeEddx"}
	evt := &event.StakeEddx{Ref: ref, Account: addr(p.Account), Token: addr(p.Token), Amount: f.int("amount", p.Amount)}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

func parseUnstakeEddx(data []byte) (*event.UnstakeEddx, error) {
	ref, p, err := decodeLog[stakeJSON](data, "UnstakeEddx")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "UnstakeEddx"}
	evt := &event.UnstakeEddx{Ref: ref, Account: addr(p.Account), Token: addr(p.Token), Amount: f.int("amount", p.Amount)}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

func parseStakeElp(data []byte) (*event.StakeElp, error) {
	ref, p, err := decodeLog[stakeJSON](data, "StakeElp")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "StakeElp"}
	evt := &event.StakeElp{Ref: ref, Account: addr(p.Account), Amount: f.int("amount", p.Amount)}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

func parseUnstakeElp(data []byte) (*event.UnstakeElp, error) {
	ref, p, err := decodeLog[stakeJSON](data, "UnstakeElp")
	if err != nil {
		return nil, err
	}
	f := &fields{name: "UnstakeElp"}
	evt := &event.UnstakeElp{Ref: ref, Account: addr(p.Account), Amount: f.int("amount", p.Amount)}
	if err := f.err(); err != nil {
		return nil, err
	}
	return evt, nil
}

// --- Price feed ---

type priceSnapshotJSON struct {
	Token     string         `json:"token"`
	Value     *entity.Amount `json:"value"`
	Timestamp int64          `json:"timestamp"`
}

// ParsePriceSnapshot decodes a feed message. The source comes from the
// subject, not the payload.
func ParsePriceSnapshot(data []byte, source pricing.Source) (pricing.Snapshot, error) {
	var j priceSnapshotJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return pricing.Snapshot{}, fmt.Errorf("%w: parse price snapshot: %v", ErrMalformed, err)
	}
	if j.Token == "" || j.Value == nil {
		return pricing.Snapshot{}, fmt.Errorf("%w: price snapshot needs token and value", ErrMalformed)
	}
	return pricing.Snapshot{
		Source:    source,
		Token:     addr(j.Token),
		Value:     j.Value.Big(),
		Timestamp: j.Timestamp,
	}, nil
}
