package entity

// OrderAction is an append-only audit record. Params is a JSON object
// whose numbers are base-10 strings.
type OrderAction struct {
	ID          string `json:"id"`
	Account     string `json:"account"`
	Action      string `json:"action"`
	BlockNumber int64  `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"`
	Transaction string `json:"transaction"`
	Params      string `json:"params"`
}

func (o *OrderAction) Kind() Kind       { return KindOrderAction }
func (o *OrderAction) EntityID() string { return o.ID }
