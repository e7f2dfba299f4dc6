package entity

// CheckpointID is the key of the single ingestion checkpoint.
const CheckpointID = "ingestion"

// Checkpoint records the last fully processed log.
type Checkpoint struct {
	ID          string `json:"id"`
	BlockNumber int64  `json:"blockNumber"`
	TxIndex     int64  `json:"transactionIndex"`
	LogIndex    int64  `json:"logIndex"`
	EventID     string `json:"eventId"`
}

func (c *Checkpoint) Kind() Kind       { return KindCheckpoint }
func (c *Checkpoint) EntityID() string { return c.ID }
