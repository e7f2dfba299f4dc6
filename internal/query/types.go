package query

import (
	"encoding/json"

	"PerpIndexer/internal/entity"
	"PerpIndexer/internal/event"
	"PerpIndexer/internal/persistence"
)

// PositionResponse is an open ledger row.
type PositionResponse struct {
	Position   *entity.Position `json:"position"`
	Correlated bool             `json:"correlated"` // identity fields came from a sibling increase
	AsOf       *event.Cursor    `json:"as_of,omitempty"`
}

// PositionPage is one page of open positions ordered by key.
type PositionPage struct {
	Positions []*entity.Position `json:"positions"`
	NextAfter string             `json:"next_after,omitempty"` // pass as ?after= for the next page
	AsOf      *event.Cursor      `json:"as_of,omitempty"`
}

// ActionResponse is one audit record with its params decoded in place.
type ActionResponse struct {
	ID          string          `json:"id"`
	Account     string          `json:"account"`
	Action      string          `json:"action"`
	BlockNumber int64           `json:"block_number"`
	Timestamp   int64           `json:"timestamp"`
	Transaction string          `json:"transaction"`
	Params      json.RawMessage `json:"params"`
}

// PriceResponse carries a resolved price as the 30-decimal integer the
// core uses plus a human-readable USD value.
type PriceResponse struct {
	Token  string `json:"token"`
	Symbol string `json:"symbol,omitempty"`
	Value  string `json:"value"`
	USD    string `json:"usd"`
}

// StatsResponse is the volume and fee bucket containing a timestamp.
// Either stat may be absent when nothing was recorded in the bucket.
type StatsResponse struct {
	Period      string             `json:"period"`
	BucketStart int64              `json:"bucket_start"`
	Volume      *entity.VolumeStat `json:"volume,omitempty"`
	Fees        *entity.FeeStat    `json:"fees,omitempty"`
	VolumeUSD   map[string]string  `json:"volume_usd,omitempty"`
	FeesUSD     map[string]string  `json:"fees_usd,omitempty"`
}

// ArchivePage lists archived events after a cursor.
type ArchivePage struct {
	Events []persistence.ArchiveRow `json:"events"`
}
