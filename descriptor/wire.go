package descriptor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

// Descriptors travel as canonical CBOR so that equal descriptors produce
// byte-identical encodings regardless of who serialized them.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("descriptor: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Encode serializes a TypeDescriptor to its wire form.
func Encode(d *TypeDescriptor) ([]byte, error) {
	return cborEncMode.Marshal(d)
}

// Decode deserializes and validates a TypeDescriptor from raw bytes. Any
// structural self-inconsistency (undecodable bytes, malformed indices,
// duplicate members) is an error; a nil error means the descriptor is safe
// to hand to the loading pipeline.
func Decode(data []byte) (*TypeDescriptor, error) {
	var d TypeDescriptor
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("descriptor: unmarshal: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
