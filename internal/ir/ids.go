package ir

import "fmt"

// NodeID identifies a node in the address space. Zero is the empty id.
type NodeID uint64

// String renders the id in the "i=N" form used in logs.
func (id NodeID) String() string {
	return fmt.Sprintf("i=%d", uint64(id))
}

// SenderID attributes a write to its originator. Zero means the write came
// from outside any registered sender (an external writer).
type SenderID uint64

// External is the sender id of anonymous writes.
const External SenderID = 0

// AffinityID names a serialization domain. Zero is never assigned.
type AffinityID uint32
