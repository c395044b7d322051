package bytecode

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Serialized format:
//   - Magic number (4 bytes): "JSBC"
//   - Version (1 byte)
//   - Canonical CBOR encoding of the program Unit
var unitMagic = []byte{'J', 'S', 'B', 'C'}

const unitFormatVersion byte = 0x02

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes u, including nested function units.
func Marshal(u *Unit) ([]byte, error) {
	payload, err := cborEncMode.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("bytecode: cbor encoding failed: %w", err)
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(payload)+len(unitMagic)+1))
	buf.Write(unitMagic)
	buf.WriteByte(unitFormatVersion)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// IsSerialized reports whether data starts with the serialized unit magic.
func IsSerialized(data []byte) bool {
	return len(data) >= len(unitMagic) && bytes.Equal(data[:len(unitMagic)], unitMagic)
}

// Unmarshal decodes a serialized unit and validates it before returning.
func Unmarshal(data []byte) (*Unit, error) {
	if len(data) < len(unitMagic)+1 {
		return nil, fmt.Errorf("bytecode data too short")
	}
	if !IsSerialized(data) {
		return nil, fmt.Errorf("invalid magic number, expected %s", unitMagic)
	}
	if v := data[len(unitMagic)]; v != unitFormatVersion {
		return nil, fmt.Errorf("unsupported bytecode version: %d (this binary supports version %d)", v, unitFormatVersion)
	}
	var u Unit
	if err := cbor.Unmarshal(data[len(unitMagic)+1:], &u); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal unit: %w", err)
	}
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	return &u, nil
}
