package core

import (
	"strconv"

	"PerpIndexer/internal/event"
)

// IdentityOf returns the record identity of a log: "<txHash>:<logIndex>".
// Log positions are unique within a transaction, so identities never collide.
func IdentityOf(ref event.Ref) string {
	return identity(ref.TxHash, ref.LogIndex)
}

// SiblingBefore returns the identity of the log emitted immediately before
// ref in the same transaction. For logIndex 0 it yields "<txHash>:-1",
// which is well-formed but never matches a stored record.
//
// The protocol emits the typed event (e.g. IncreasePosition) directly
// before the generic UpdatePosition it triggers; this is the only
// correlation between them.
func SiblingBefore(ref event.Ref) string {
	return identity(ref.TxHash, ref.LogIndex-1)
}

func identity(txHash string, logIndex int64) string {
	buf := make([]byte, 0, len(txHash)+1+20)
	buf = append(buf, txHash...)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, logIndex, 10)
	return string(buf)
}
