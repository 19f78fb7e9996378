package treewalk

import (
	cbor "github.com/fxamacker/cbor/v2"
)

// Codec encodes a rank's results for the gather step. It must be stable
// across ranks since rank 0 decodes what every other rank encoded.
type Codec[R any] interface {
	Encode(R) ([]byte, error)
	Decode([]byte) (R, error)
}

// CBORCodec is used when Walker.Codec is nil.
type CBORCodec[R any] struct{}

func (CBORCodec[R]) Encode(v R) ([]byte, error) { return cborEnc.Marshal(v) }
func (CBORCodec[R]) Decode(b []byte) (R, error) {
	var v R
	err := cbor.Unmarshal(b, &v)
	return v, err
}
