package core

import "time"

// ChangeOp is the kind of mutation a Change describes.
type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// Entity names carried by a Change.
const (
	EntityTransaction = "transaction"
	EntityCategory    = "category"
)

// Change records one applied mutation. Exactly one of Transaction or
// Category is set, except for deletes where only ID is known.
type Change struct {
	Op          ChangeOp     `json:"op"`
	Entity      string       `json:"entity"`
	ID          ID           `json:"id"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Category    *Category    `json:"category,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}
