package model

// TxResponse is the Sui-shaped transaction response the RPC adapter fetches
// a body for, and the membership filter classifies. Only the fields
// relevant to the `is_of_interest` contract (§4.6) are modeled.
type TxResponse struct {
	Digest  Digest          `json:"digest"`
	Sender  []byte          `json:"sender"`
	Status  ExecutionStatus `json:"status"`
	Effects Effects         `json:"effects"`
	Events  []Event         `json:"events"`
}

// ExecutionStatus is the outcome of running a transaction.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailure ExecutionStatus = "failure"
)

// OwnerKind enumerates the ways a Sui object can be owned.
type OwnerKind int

const (
	OwnerAddress OwnerKind = iota
	OwnerObject
	OwnerShared
	OwnerImmutable
)

// Owner identifies who (or what) holds an object.
type Owner struct {
	Kind    OwnerKind
	Address []byte // meaningful only when Kind == OwnerAddress
}

// ObjectRef is an object touched by a transaction, together with its owner
// after the change (nil for deleted/wrapped objects, which have none).
type ObjectRef struct {
	ObjectID []byte
	Owner    *Owner
}

// Effects groups every object a transaction touched, by the kind of touch.
type Effects struct {
	Created   []ObjectRef
	Mutated   []ObjectRef
	Unwrapped []ObjectRef
	Deleted   []ObjectRef
	Wrapped   []ObjectRef
	Shared    []ObjectRef
}

// AllObjects returns every object ref across all effect buckets.
func (e Effects) AllObjects() []ObjectRef {
	total := len(e.Created) + len(e.Mutated) + len(e.Unwrapped) + len(e.Deleted) + len(e.Wrapped) + len(e.Shared)
	out := make([]ObjectRef, 0, total)
	out = append(out, e.Created...)
	out = append(out, e.Mutated...)
	out = append(out, e.Unwrapped...)
	out = append(out, e.Deleted...)
	out = append(out, e.Wrapped...)
	out = append(out, e.Shared...)
	return out
}

// EventKind distinguishes the event shapes the membership filter cares
// about from all other (opaque) event types.
type EventKind string

const (
	EventTransfer  EventKind = "transfer"
	EventNewObject EventKind = "new_object"
	EventOther     EventKind = "other"
)

// Event is an event emitted by a transaction's Move call.
type Event struct {
	PackageID []byte
	Module    string
	TypeName  string
	Sender    []byte
	Kind      EventKind
	// Recipient is the recipient owner for transfer/new-object events, if any.
	Recipient *Owner
}
