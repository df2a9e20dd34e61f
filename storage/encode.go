package storage

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ArtifactEncoding defines the encoding formats for stored artifacts.
type ArtifactEncoding int

const (
	// ArtifactEncodingCBOR is the CBOR encoding format (default).
	ArtifactEncodingCBOR ArtifactEncoding = iota
	// ArtifactEncodingJSON is the JSON encoding format, slower but easier to inspect.
	ArtifactEncodingJSON
)

// cborEnc is a deterministic CBOR encoder so identical artifacts produce
// identical bytes.
var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoder init: %v", err))
	}
}

// EncodeArtifact encodes an artifact into the specified encoding format. If
// no format is specified, CBOR is used.
func EncodeArtifact(a any, encoding ...ArtifactEncoding) ([]byte, error) {
	enc := ArtifactEncodingCBOR
	if len(encoding) > 0 {
		enc = encoding[0]
	}
	switch enc {
	case ArtifactEncodingCBOR:
		data, err := cborEnc.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode artifact: %w", err)
		}
		return data, nil
	case ArtifactEncodingJSON:
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encode artifact: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown artifact encoding: %d", enc)
	}
}

// DecodeArtifact decodes an artifact from the specified format. If no format
// is specified, CBOR is tried first with a JSON fallback, which allows
// switching the encoder without migrating previously stored values.
func DecodeArtifact(data []byte, out any, encoding ...ArtifactEncoding) error {
	if len(encoding) > 0 {
		switch encoding[0] {
		case ArtifactEncodingCBOR:
			return cbor.Unmarshal(data, out)
		case ArtifactEncodingJSON:
			return json.Unmarshal(data, out)
		default:
			return fmt.Errorf("unknown artifact encoding: %d", encoding[0])
		}
	}
	if err := cbor.Unmarshal(data, out); err != nil {
		if jsonErr := json.Unmarshal(data, out); jsonErr == nil {
			return nil
		}
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}
