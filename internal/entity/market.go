package entity

type Swap struct {
	ID                 string  `json:"id"`
	Account            string  `json:"account"`
	TokenIn            string  `json:"tokenIn"`
	TokenOut           string  `json:"tokenOut"`
	AmountIn           *Amount `json:"amountIn"`
	AmountOut          *Amount `json:"amountOut"`
	AmountOutAfterFees *Amount `json:"amountOutAfterFees"`
	FeeBasisPoints     *Amount `json:"feeBasisPoints"`
	Origin
}

func (s *Swap) Kind() Kind       { return KindSwap }
func (s *Swap) EntityID() string { return s.ID }

// CollectFees backs both CollectMarginFees and CollectSwapFees records.
type CollectFees struct {
	kind      Kind
	ID        string  `json:"id"`
	Token     string  `json:"token"`
	FeeTokens *Amount `json:"feeTokens"`
	FeeUsd    *Amount `json:"feeUsd"`
	Origin
}

// NewCollectFees returns an empty record of a fee kind.
func NewCollectFees(kind Kind) *CollectFees { return &CollectFees{kind: kind} }

func (c *CollectFees) Kind() Kind       { return c.kind }
func (c *CollectFees) EntityID() string { return c.ID }

type AddLiquidity struct {
	ID         string  `json:"id"`
	Account    string  `json:"account"`
	Token      string  `json:"token"`
	Amount     *Amount `json:"amount"`
	AumInUsdg  *Amount `json:"aumInUsdg"`
	ElpSupply  *Amount `json:"elpSupply"`
	UsdgAmount *Amount `json:"usdgAmount"`
	MintAmount *Amount `json:"mintAmount"`
	Origin
}

func (a *AddLiquidity) Kind() Kind       { return KindAddLiquidity }
func (a *AddLiquidity) EntityID() string { return a.ID }

type RemoveLiquidity struct {
	ID         string  `json:"id"`
	Account    string  `json:"account"`
	Token      string  `json:"token"`
	ElpAmount  *Amount `json:"elpAmount"`
	AumInUsdg  *Amount `json:"aumInUsdg"`
	ElpSupply  *Amount `json:"elpSupply"`
	UsdgAmount *Amount `json:"usdgAmount"`
	AmountOut  *Amount `json:"amountOut"`
	Origin
}

func (r *RemoveLiquidity) Kind() Kind       { return KindRemoveLiquidity }
func (r *RemoveLiquidity) EntityID() string { return r.ID }

// Stake backs the four RewardRouter record kinds. Token is empty for ELP.
type Stake struct {
	kind    Kind
	ID      string  `json:"id"`
	Account string  `json:"account"`
	Token   string  `json:"token,omitempty"`
	Amount  *Amount `json:"amount"`
	Origin
}

// NewStake returns an empty record of a staking kind.
func NewStake(kind Kind) *Stake { return &Stake{kind: kind} }

func (s *Stake) Kind() Kind       { return s.kind }
func (s *Stake) EntityID() string { return s.ID }
