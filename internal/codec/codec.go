// Package codec serializes persona contexts for the context store. The
// primary format is canonical CBOR, which is deterministic for a given
// context value so checksum verification is meaningful. When binary encoding
// fails the codec falls back to JSON and records that choice in the context
// metadata; decode selects the parser from the stored format tag.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	batonerrors "baton/internal/errors"
	"baton/internal/logging"
	"baton/pkg/types"
)

// Codec encodes and decodes PersonaContext payloads.
type Codec struct {
	em     cbor.EncMode
	dm     cbor.DecMode
	logger *logging.Logger
}

// New constructs a Codec with canonical (deterministic) CBOR encoding.
func New() (*Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("codec: build encode mode: %w", err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("codec: build decode mode: %w", err)
	}
	return &Codec{
		em:     em,
		dm:     dm,
		logger: logging.NewComponentLogger("Codec"),
	}, nil
}

// Encode serializes pc, preferring binary. The returned format reflects what
// was actually produced and is also stamped into pc.Metadata.Encoding before
// serialization, so the payload itself records its own format. An error is
// returned only when the JSON fallback fails as well.
func (c *Codec) Encode(pc *types.PersonaContext) ([]byte, types.EncodingFormat, error) {
	pc.Metadata.Encoding = types.EncodingBinary
	w, err := toWire(pc)
	if err == nil {
		var data []byte
		data, err = c.em.Marshal(w)
		if err == nil {
			return data, types.EncodingBinary, nil
		}
	}

	c.logger.Warn("binary encoding of %s failed, falling back to json: %v", pc.Metadata.ContextID, err)
	pc.Metadata.Encoding = types.EncodingJSONFallback
	data, jsonErr := json.Marshal(pc)
	if jsonErr != nil {
		return nil, "", &batonerrors.EncodingError{Stage: "fallback-encode", Err: jsonErr}
	}
	return data, types.EncodingJSONFallback, nil
}

// Decode parses data according to format. Malformed bytes or an unknown
// extension kind fail hard; no partial context is ever returned.
func (c *Codec) Decode(data []byte, format types.EncodingFormat) (*types.PersonaContext, error) {
	switch format {
	case types.EncodingJSONFallback:
		var pc types.PersonaContext
		if err := json.Unmarshal(data, &pc); err != nil {
			return nil, &batonerrors.EncodingError{Stage: "decode", Err: err}
		}
		return &pc, nil
	case types.EncodingBinary, "":
		var w wireContext
		if err := c.dm.Unmarshal(data, &w); err != nil {
			return nil, &batonerrors.EncodingError{Stage: "decode", Err: err}
		}
		pc, err := fromWire(&w)
		if err != nil {
			return nil, &batonerrors.EncodingError{Stage: "decode", Err: err}
		}
		return pc, nil
	default:
		return nil, &batonerrors.EncodingError{Stage: "decode", Err: fmt.Errorf("unknown encoding format %q", format)}
	}
}
