package entity

import "fmt"

// StatID is the key of a period bucket: "<bucketStart>:<period>".
func StatID(bucketStart int64, period string) string {
	return fmt.Sprintf("%d:%s", bucketStart, period)
}

// VolumeStat accumulates 30-decimal USD volume per bucket.
type VolumeStat struct {
	ID          string  `json:"id"`
	Period      string  `json:"period"`
	Timestamp   int64   `json:"timestamp"`
	Swap        *Amount `json:"swap"`
	Margin      *Amount `json:"margin"`
	Liquidation *Amount `json:"liquidation"`
	Mint        *Amount `json:"mint"`
	Burn        *Amount `json:"burn"`
}

func (v *VolumeStat) Kind() Kind       { return KindVolumeStat }
func (v *VolumeStat) EntityID() string { return v.ID }

// FeeStat accumulates 30-decimal USD fees per bucket.
type FeeStat struct {
	ID        string  `json:"id"`
	Period    string  `json:"period"`
	Timestamp int64   `json:"timestamp"`
	Swap      *Amount `json:"swap"`
	Margin    *Amount `json:"margin"`
}

func (f *FeeStat) Kind() Kind       { return KindFeeStat }
func (f *FeeStat) EntityID() string { return f.ID }
