package entity

// Transaction is the per-hash summary shared by every log of one
// transaction. Created once, never mutated.
type Transaction struct {
	ID               string `json:"id"` // transaction hash
	Timestamp        int64  `json:"timestamp"`
	BlockNumber      int64  `json:"blockNumber"`
	TransactionIndex int64  `json:"transactionIndex"`
	From             string `json:"from"`
	To               string `json:"to"`
}

func (t *Transaction) Kind() Kind       { return KindTransaction }
func (t *Transaction) EntityID() string { return t.ID }
