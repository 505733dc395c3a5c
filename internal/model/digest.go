// Package model holds the data types shared by the digest store, the RPC
// adapter, the reconciliation engine and the puller.
package model

import (
	"encoding/hex"
	"fmt"
)

// DigestSize is the length in bytes of a transaction digest.
const DigestSize = 32

// Digest is a content-address of a transaction. Equality is byte-equality;
// there is no ordering among digests themselves.
type Digest [DigestSize]byte

// String renders the digest as lowercase hex, for logging.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// DigestFromSlice copies b into a Digest. b must be exactly DigestSize bytes.
func DigestFromSlice(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// DigestFromHex decodes a lowercase-hex-encoded digest, as returned by the
// chain node's JSON-RPC API.
func DigestFromHex(s string) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest hex %q: %w", s, err)
	}
	return DigestFromSlice(b)
}

// SeqNum is the node-local monotonic index the chain node assigns to
// transactions in its view.
type SeqNum uint64

// SeqnumDigest pairs a digest with the seqnum the RPC node reported it at.
// The RPC adapter returns these pairs rather than a bare digest slice so
// that callers never have to assume dense, positionally-zippable ranges.
type SeqnumDigest struct {
	Seqnum SeqNum
	Digest Digest
}

// Status is the processing state of a digest-log entry.
type Status int16

const (
	// StatusUnprocessed marks a digest not yet fetched/classified by a puller.
	StatusUnprocessed Status = 0
	// StatusProcessed marks a digest whose body has been fetched and classified.
	StatusProcessed Status = 1
)

// DigestEntry is a row of the digest log: the store's insertion order (id),
// the digest itself, and its processing status.
type DigestEntry struct {
	ID     int64
	Digest Digest
	Status Status
}

// TxBody is a persisted, versioned transaction body. Order mirrors the
// digest log's id but is not a foreign key: the digest log may be
// truncated while bodies persist.
type TxBody struct {
	Order   int64
	Digest  Digest
	Version string
	Data    []byte
}
