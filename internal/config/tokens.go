package config

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	fpmath "PerpIndexer/internal/math"
)

// Protocol token addresses (lowercase hex).
const (
	WETH = "0x4200000000000000000000000000000000000006"
	BTC  = "0x1acf131de5bbc72ae96ee5ec7b59da2f38b19dbd"
	LINK = "0x63ba205da17003ab46ce0dd78be8ba8ee3952e5f"
	USDT = "0x8654f060eb1e5533c259cdcbbe39834bb8141cf4"
	USDC = "0xecb03bbcf83e863b9053a926932dbb07d837ebbe"
	DAI  = "0xfe9cdcc77fb826b380d49f53c8ce298b600cb7f0"
	EDDX = "0x24b63ae170152fccf6a11cd77ffa2d7f04ed999d"
)

// Token describes one supported asset.
type Token struct {
	Address      string
	Symbol       string
	Decimals     int
	DefaultPrice *big.Int // 30-decimal USD, cold-start fallback
	Reward       bool     // priced from the AMM snapshot instead of the oracle
}

// TokenTable is the immutable token→decimals and token→default-price
// configuration. It is built once at startup and shared read-only.
type TokenTable struct {
	tokens map[string]Token
	reward string
}

// NewTokenTable validates and indexes tokens. At most one token may be
// flagged as the reward token.
func NewTokenTable(tokens []Token) (*TokenTable, error) {
	t := &TokenTable{tokens: make(map[string]Token, len(tokens))}
	for _, tok := range tokens {
		addr := NormalizeAddress(tok.Address)
		if addr == "" {
			return nil, fmt.Errorf("token %q: empty address", tok.Symbol)
		}
		if _, dup := t.tokens[addr]; dup {
			return nil, fmt.Errorf("token %s: duplicate address", addr)
		}
		if tok.Decimals < 0 || tok.Decimals > 77 {
			return nil, fmt.Errorf("token %s: decimals %d out of range", addr, tok.Decimals)
		}
		if tok.DefaultPrice != nil && tok.DefaultPrice.Sign() < 0 {
			return nil, fmt.Errorf("token %s: negative default price", addr)
		}
		if tok.Reward {
			if t.reward != "" {
				return nil, fmt.Errorf("token %s: reward token already set to %s", addr, t.reward)
			}
			t.reward = addr
		}
		tok.Address = addr
		if tok.DefaultPrice != nil {
			tok.DefaultPrice = new(big.Int).Set(tok.DefaultPrice)
		}
		t.tokens[addr] = tok
	}
	return t, nil
}

// MustTokenTable panics on invalid input. Intended for tests and built-ins.
func MustTokenTable(tokens []Token) *TokenTable {
	t, err := NewTokenTable(tokens)
	if err != nil {
		panic(err)
	}
	return t
}

// Decimals returns the token's precision. ok is false for unknown tokens.
func (t *TokenTable) Decimals(token string) (int, bool) {
	tok, ok := t.tokens[NormalizeAddress(token)]
	if !ok {
		return 0, false
	}
	return tok.Decimals, true
}

// DefaultPrice returns a copy of the fallback price. ok distinguishes a
// missing entry from an entry configured as zero.
func (t *TokenTable) DefaultPrice(token string) (*big.Int, bool) {
	tok, ok := t.tokens[NormalizeAddress(token)]
	if !ok || tok.DefaultPrice == nil {
		return nil, false
	}
	return new(big.Int).Set(tok.DefaultPrice), true
}

// IsRewardToken reports whether token is the protocol's native reward token.
func (t *TokenTable) IsRewardToken(token string) bool {
	return t.reward != "" && NormalizeAddress(token) == t.reward
}

// RewardToken returns the reward token address, or "" when none is configured.
func (t *TokenTable) RewardToken() string { return t.reward }

// Symbol returns the display symbol, falling back to the address.
func (t *TokenTable) Symbol(token string) string {
	if tok, ok := t.tokens[NormalizeAddress(token)]; ok && tok.Symbol != "" {
		return tok.Symbol
	}
	return token
}

// Addresses returns all configured addresses in sorted order.
func (t *TokenTable) Addresses() []string {
	out := make([]string, 0, len(t.tokens))
	for addr := range t.tokens {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// NormalizeAddress lowercases and trims a hex address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// DefaultTokens returns the protocol's built-in token set. All tokens use
// 18 decimals.
func DefaultTokens() []Token {
	usd := func(whole int64) *big.Int { return fpmath.Units(whole, fpmath.PriceConfig) }
	return []Token{
		{Address: WETH, Symbol: "WETH", Decimals: 18, DefaultPrice: usd(3350)},
		{Address: BTC, Symbol: "BTC", Decimals: 18, DefaultPrice: usd(45000)},
		{Address: LINK, Symbol: "LINK", Decimals: 18, DefaultPrice: usd(25)},
		{Address: USDC, Symbol: "USDC", Decimals: 18, DefaultPrice: usd(1)},
		{Address: USDT, Symbol: "USDT", Decimals: 18, DefaultPrice: usd(1)},
		{Address: DAI, Symbol: "DAI", Decimals: 18, DefaultPrice: usd(1)},
		{Address: EDDX, Symbol: "EDDX", Decimals: 18, DefaultPrice: usd(30), Reward: true},
	}
}
