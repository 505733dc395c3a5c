// Package codec serializes transaction bodies for storage. Encodings are
// versioned by release identifier so future readers can pick the matching
// decoder without touching already-persisted rows.
package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"laminar/internal/model"
)

// Version is the release identifier tagged onto every body this build
// produces. Bumping it does not invalidate previously persisted rows: their
// own Version field records which decoder they need.
const Version = "v1"

// Encode serializes a TxResponse into the opaque, versioned payload stored
// in TxBody.Data.
func Encode(body model.TxResponse) (version string, data []byte, err error) {
	data, err = msgpack.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("encode tx body: %w", err)
	}
	return Version, data, nil
}

// Decode deserializes data back into a TxResponse, dispatching on version.
func Decode(version string, data []byte) (model.TxResponse, error) {
	switch version {
	case Version:
		var body model.TxResponse
		if err := msgpack.Unmarshal(data, &body); err != nil {
			return model.TxResponse{}, fmt.Errorf("decode tx body (version %s): %w", version, err)
		}
		return body, nil
	default:
		return model.TxResponse{}, fmt.Errorf("unsupported tx body version %q", version)
	}
}
