// Package codec is the storage codec for every value persisted in Badger.
// Encoding is deterministic CBOR (RFC 8949 §4.2): sorted map keys, smallest
// integer form, no indefinite-length items. The same logical record always
// produces identical bytes, which keeps idempotent rewrites cheap to detect.
package codec

import (
	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
}

func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes standard CBOR. Unknown fields are ignored, so records
// written by newer versions still decode.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
