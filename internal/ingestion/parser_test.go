package ingestion_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"PerpIndexer/internal/event"
	"PerpIndexer/internal/ingestion"
	"PerpIndexer/internal/pricing"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func envelope(params map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"transactionHash":  "0xABC",
		"logIndex":         5,
		"blockNumber":      100,
		"blockTimestamp":   1700000000,
		"transactionIndex": 2,
		"from":             "0xFrom",
		"to":               "0xVault",
		"params":           params,
	}
}

func TestParseIncreasePosition(t *testing.T) {
	payload := envelope(map[string]interface{}{
		"key":             "0xKEY",
		"account":         "0xAccount",
		"collateralToken": "0xUSDC",
		"indexToken":      "0xWETH",
		"collateralDelta": "1000000000000000000000000000000000",
		"sizeDelta":       "10000000000000000000000000000000000",
		"isLong":          true,
		"price":           "3350000000000000000000000000000000",
		"fee":             10,
	})

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), event.EventTypeIncreasePosition)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	inc, ok := evt.(*event.IncreasePosition)
	if !ok {
		t.Fatalf("expected *event.IncreasePosition, got %T", evt)
	}

	if inc.TxHash != "0xabc" {
		t.Errorf("tx hash: got %s, want 0xabc", inc.TxHash)
	}
	if inc.LogIndex != 5 || inc.BlockNumber != 100 || inc.TxIndex != 2 {
		t.Errorf("cursor: got %s", inc.Cursor())
	}
	if inc.Key != "0xkey" || inc.Account != "0xaccount" {
		t.Errorf("addresses not normalized: key=%s account=%s", inc.Key, inc.Account)
	}
	if inc.SizeDelta.String() != "10000000000000000000000000000000000" {
		t.Errorf("sizeDelta: got %s", inc.SizeDelta)
	}
	if inc.Fee.Int64() != 10 {
		t.Errorf("bare number fee: got %s, want 10", inc.Fee)
	}
	if !inc.IsLong {
		t.Error("isLong: got false, want true")
	}
	if inc.TxTo != "0xvault" {
		t.Errorf("to: got %s", inc.TxTo)
	}
}

func TestParseUpdatePosition(t *testing.T) {
	payload := envelope(map[string]interface{}{
		"key":              "0xkey",
		"size":             "1",
		"collateral":       "2",
		"averagePrice":     "3",
		"entryFundingRate": "4",
		"reserveAmount":    "5",
		"realisedPnl":      "-6",
		"markPrice":        "7",
	})

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), event.EventTypeUpdatePosition)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	up := evt.(*event.UpdatePosition)
	if up.RealisedPnl.Int64() != -6 {
		t.Errorf("realisedPnl: got %s, want -6", up.RealisedPnl)
	}
	if up.EventType() != event.EventTypeUpdatePosition {
		t.Errorf("event type: got %v", up.EventType())
	}
}

func TestParseCreateIncreasePosition_Path(t *testing.T) {
	payload := envelope(map[string]interface{}{
		"account":         "0xa",
		"path":            []string{"0xUSDC", "0xWETH"},
		"indexToken":      "0xweth",
		"amountIn":        "1",
		"minOut":          "0",
		"sizeDelta":       "2",
		"isLong":          false,
		"acceptablePrice": "3",
		"executionFee":    "4",
	})

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), event.EventTypeCreateIncreasePosition)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	req := evt.(*event.CreateIncreasePosition)
	if req.CollateralToken() != "0xweth" {
		t.Errorf("collateral token: got %s, want last path element", req.CollateralToken())
	}
}

func TestParseCreateDecreasePosition_EmptyPathRejected(t *testing.T) {
	payload := envelope(map[string]interface{}{
		"account":         "0xa",
		"path":            []string{},
		"indexToken":      "0xweth",
		"collateralDelta": "1",
		"sizeDelta":       "2",
		"isLong":          false,
		"receiver":        "0xa",
		"acceptablePrice": "3",
		"minOut":          "0",
		"executionFee":    "4",
	})

	_, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), event.EventTypeCreateDecreasePosition)
	if !errors.Is(err, ingestion.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParseSwap_MissingFieldsNamed(t *testing.T) {
	payload := envelope(map[string]interface{}{
		"account":  "0xa",
		"tokenIn":  "0xweth",
		"tokenOut": "0xusdc",
		"amountIn": "1",
	})

	_, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), event.EventTypeSwap)
	if !errors.Is(err, ingestion.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	want := "malformed payload: Swap: missing amountOut, amountOutAfterFees, feeBasisPoints"
	if err.Error() != want {
		t.Errorf("error: got %q, want %q", err.Error(), want)
	}
}

func TestParseStakeElp(t *testing.T) {
	payload := envelope(map[string]interface{}{"account": "0xA", "amount": "9"})

	evt, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), event.EventTypeStakeElp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	st := evt.(*event.StakeElp)
	if st.Account != "0xa" || st.Amount.Int64() != 9 {
		t.Errorf("got account=%s amount=%s", st.Account, st.Amount)
	}
}

func TestParse_EnvelopeValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing tx hash", func(m map[string]interface{}) { delete(m, "transactionHash") }},
		{"missing log index", func(m map[string]interface{}) { delete(m, "logIndex") }},
		{"negative log index", func(m map[string]interface{}) { m["logIndex"] = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := envelope(map[string]interface{}{"account": "0xa", "amount": "1"})
			tt.mutate(payload)
			_, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), event.EventTypeStakeElp)
			if !errors.Is(err, ingestion.ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestParse_InvalidAmount(t *testing.T) {
	payload := envelope(map[string]interface{}{"account": "0xa", "amount": "1.5"})
	_, err := ingestion.ParseRawEvent(rawFromJSON(t, payload), event.EventTypeStakeElp)
	if err == nil {
		t.Fatal("expected error for fractional amount")
	}
}

func TestParse_UnknownType(t *testing.T) {
	_, err := ingestion.ParseRawEvent(rawFromJSON(t, envelope(nil)), event.EventTypeUnknown)
	if !errors.Is(err, ingestion.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParsePriceSnapshot(t *testing.T) {
	data := []byte(`{"token":"0xWETH","value":"335000000000","timestamp":1700000000}`)

	snap, err := ingestion.ParsePriceSnapshot(data, pricing.SourceOracle)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if snap.Token != "0xweth" || snap.Value.String() != "335000000000" || snap.Source != pricing.SourceOracle {
		t.Errorf("got %+v", snap)
	}

	if _, err := ingestion.ParsePriceSnapshot([]byte(`{"token":"0xweth"}`), pricing.SourceAMM); err == nil {
		t.Error("expected error for missing value")
	}
}

func TestEventTypeForSubject(t *testing.T) {
	tests := []struct {
		subject string
		want    event.EventType
		wantErr bool
	}{
		{"protocol.vault.IncreasePosition", event.EventTypeIncreasePosition, false},
		{"protocol.router.CreateDecreasePosition", event.EventTypeCreateDecreasePosition, false},
		{"protocol.elp.RemoveLiquidity", event.EventTypeRemoveLiquidity, false},
		{"protocol.reward.UnstakeElp", event.EventTypeUnstakeElp, false},
		{"protocol.vault.AddLiquidity", event.EventTypeUnknown, true},
		{"protocol.vault.Bogus", event.EventTypeUnknown, true},
		{"prices.chainlink", event.EventTypeUnknown, true},
	}

	for _, tt := range tests {
		got, err := ingestion.EventTypeForSubject(tt.subject)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err=%v, wantErr=%v", tt.subject, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.subject, got, tt.want)
		}
	}
}

func TestSourceForSubject(t *testing.T) {
	if src, err := ingestion.SourceForSubject("prices.amm"); err != nil || src != pricing.SourceAMM {
		t.Errorf("prices.amm: got %v, %v", src, err)
	}
	if _, err := ingestion.SourceForSubject("prices.binance"); err == nil {
		t.Error("expected error for unknown source")
	}
}
