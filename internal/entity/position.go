package entity

// Position is the ledger row for one open position, keyed by the
// protocol position key. Account, tokens and side are set once at
// creation from the correlated IncreasePosition and stay empty when no
// sibling was found.
type Position struct {
	Key              string  `json:"id"`
	Size             *Amount `json:"size"`
	Collateral       *Amount `json:"collateral"`
	AveragePrice     *Amount `json:"averagePrice"`
	EntryFundingRate *Amount `json:"entryFundingRate"`
	ReserveAmount    *Amount `json:"reserveAmount"`
	RealisedPnl      *Amount `json:"realisedPnl"`
	MarkPrice        *Amount `json:"markPrice"`

	Account         string `json:"account,omitempty"`
	CollateralToken string `json:"collateralToken,omitempty"`
	IndexToken      string `json:"indexToken,omitempty"`
	IsLong          *bool  `json:"isLong,omitempty"`

	Origin
}

func (p *Position) Kind() Kind       { return KindPosition }
func (p *Position) EntityID() string { return p.Key }

// Correlated reports whether identity fields were copied from a sibling.
func (p *Position) Correlated() bool { return p.IsLong != nil }

type IncreasePosition struct {
	ID              string  `json:"id"`
	Key             string  `json:"key"`
	Account         string  `json:"account"`
	CollateralToken string  `json:"collateralToken"`
	IndexToken      string  `json:"indexToken"`
	CollateralDelta *Amount `json:"collateralDelta"`
	SizeDelta       *Amount `json:"sizeDelta"`
	IsLong          bool    `json:"isLong"`
	Price           *Amount `json:"price"`
	Fee             *Amount `json:"fee"`
	Origin
}

func (p *IncreasePosition) Kind() Kind       { return KindIncreasePosition }
func (p *IncreasePosition) EntityID() string { return p.ID }

type DecreasePosition struct {
	ID              string  `json:"id"`
	Key             string  `json:"key"`
	Account         string  `json:"account"`
	CollateralToken string  `json:"collateralToken"`
	IndexToken      string  `json:"indexToken"`
	CollateralDelta *Amount `json:"collateralDelta"`
	SizeDelta       *Amount `json:"sizeDelta"`
	IsLong          bool    `json:"isLong"`
	Price           *Amount `json:"price"`
	Fee             *Amount `json:"fee"`
	Origin
}

func (p *DecreasePosition) Kind() Kind       { return KindDecreasePosition }
func (p *DecreasePosition) EntityID() string { return p.ID }

type LiquidatePosition struct {
	ID              string  `json:"id"`
	Key             string  `json:"key"`
	Account         string  `json:"account"`
	CollateralToken string  `json:"collateralToken"`
	IndexToken      string  `json:"indexToken"`
	IsLong          bool    `json:"isLong"`
	Size            *Amount `json:"size"`
	Collateral      *Amount `json:"collateral"`
	ReserveAmount   *Amount `json:"reserveAmount"`
	RealisedPnl     *Amount `json:"realisedPnl"`
	MarkPrice       *Amount `json:"markPrice"`
	Origin
}

func (p *LiquidatePosition) Kind() Kind       { return KindLiquidatePosition }
func (p *LiquidatePosition) EntityID() string { return p.ID }

type ClosePosition struct {
	ID               string  `json:"id"`
	Key              string  `json:"key"`
	Size             *Amount `json:"size"`
	Collateral       *Amount `json:"collateral"`
	AveragePrice     *Amount `json:"averagePrice"`
	EntryFundingRate *Amount `json:"entryFundingRate"`
	ReserveAmount    *Amount `json:"reserveAmount"`
	RealisedPnl      *Amount `json:"realisedPnl"`
	Origin
}

func (p *ClosePosition) Kind() Kind       { return KindClosePosition }
func (p *ClosePosition) EntityID() string { return p.ID }

type CreateIncreasePosition struct {
	ID              string  `json:"id"`
	Account         string  `json:"account"`
	CollateralToken string  `json:"collateralToken"`
	IndexToken      string  `json:"indexToken"`
	SizeDelta       *Amount `json:"sizeDelta"`
	AmountIn        *Amount `json:"amountIn"`
	IsLong          bool    `json:"isLong"`
	AcceptablePrice *Amount `json:"acceptablePrice"`
	ExecutionFee    *Amount `json:"executionFee"`
	Origin
}

func (p *CreateIncreasePosition) Kind() Kind       { return KindCreateIncreasePosition }
func (p *CreateIncreasePosition) EntityID() string { return p.ID }

type CreateDecreasePosition struct {
	ID              string  `json:"id"`
	Account         string  `json:"account"`
	CollateralToken string  `json:"collateralToken"`
	IndexToken      string  `json:"indexToken"`
	SizeDelta       *Amount `json:"sizeDelta"`
	IsLong          bool    `json:"isLong"`
	AcceptablePrice *Amount `json:"acceptablePrice"`
	ExecutionFee    *Amount `json:"executionFee"`
	Origin
}

func (p *CreateDecreasePosition) Kind() Kind       { return KindCreateDecreasePosition }
func (p *CreateDecreasePosition) EntityID() string { return p.ID }
