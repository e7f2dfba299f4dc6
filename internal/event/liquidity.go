package event

import "math/big"

// AddLiquidity is an ElpManager mint: Token deposited for ELP.
type AddLiquidity struct {
	Ref
	Account    string
	Token      string
	Amount     *big.Int
	AumInUsdg  *big.Int
	ElpSupply  *big.Int
	UsdgAmount *big.Int
	MintAmount *big.Int
}

func (e *AddLiquidity) EventType() EventType { return EventTypeAddLiquidity }

// RemoveLiquidity is an ElpManager burn: ELP redeemed for Token.
type RemoveLiquidity struct {
	Ref
	Account    string
	Token      string
	ElpAmount  *big.Int
	AumInUsdg  *big.Int
	ElpSupply  *big.Int
	UsdgAmount *big.Int
	AmountOut  *big.Int
}

func (e *RemoveLiquidity) EventType() EventType { return EventTypeRemoveLiquidity }

// StakeEddx and UnstakeEddx are RewardRouter events for the reward token
// or its escrowed form.
type StakeEddx struct {
	Ref
	Account string
	Token   string
	Amount  *big.Int
}

func (e *StakeEddx) EventType() EventType { return EventTypeStakeEddx }

type UnstakeEddx struct {
	Ref
	Account string
	Token   string
	Amount  *big.Int
}

func (e *UnstakeEddx) EventType() EventType { return EventTypeUnstakeEddx }

// StakeElp and UnstakeElp carry no token field; the staked asset is ELP.
type StakeElp struct {
	Ref
	Account string
	Amount  *big.Int
}

func (e *StakeElp) EventType() EventType { return EventTypeStakeElp }

type UnstakeElp struct {
	Ref
	Account string
	Amount  *big.Int
}

func (e *UnstakeElp) EventType() EventType { return EventTypeUnstakeElp }
