package entity

// PriceSnapshot is the latest externally fed price for a token. Chainlink
// values are 8-decimal; Uniswap (AMM) values are already 30-decimal.
type PriceSnapshot struct {
	kind      Kind
	Token     string  `json:"id"`
	Value     *Amount `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// NewPriceSnapshot returns a snapshot of KindChainlinkPrice or KindUniswapPrice.
func NewPriceSnapshot(kind Kind, token string) *PriceSnapshot {
	return &PriceSnapshot{kind: kind, Token: token}
}

func (p *PriceSnapshot) Kind() Kind       { return p.kind }
func (p *PriceSnapshot) EntityID() string { return p.Token }
