package entity

// Envelope is the message value published to the broker for one block.
//
// ID is a fingerprint of (Timestamp, canonical Data) and therefore changes
// every time the same block is sent again; it does not identify the block.
type Envelope struct {
	Timestamp string `json:"timestamp"`
	Data      Block  `json:"data"`
	ID        string `json:"id"`
}

// PublishAck is the broker's position marker for an acknowledged record.
type PublishAck struct {
	Topic      string
	Partition  int32
	Offset     int64
	EnvelopeID string
}
