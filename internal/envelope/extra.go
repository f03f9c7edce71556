package envelope

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ExtraData is the ordered, nullable-string key/value bag carried across a
// redirect-based login round trip (return URL, caller origin, impersonation
// hints, and similar) and sealed under the Extra purpose. Insertion order is
// preserved so the bag round-trips byte-identically.
type ExtraData struct {
	keys   []string
	values []*string
}

// NewExtraData returns an empty bag.
func NewExtraData() *ExtraData {
	return &ExtraData{}
}

// Set assigns key to a non-null value, replacing any existing entry for key
// in place, or appending it if new.
func (e *ExtraData) Set(key, value string) {
	v := value
	e.setRaw(key, &v)
}

// SetNull assigns key to an explicit null, distinguishable from "absent".
func (e *ExtraData) SetNull(key string) {
	e.setRaw(key, nil)
}

func (e *ExtraData) setRaw(key string, value *string) {
	for i, k := range e.keys {
		if k == key {
			e.values[i] = value
			return
		}
	}
	e.keys = append(e.keys, key)
	e.values = append(e.values, value)
}

// Get returns the value for key, whether it is present, and whether it is
// null (only meaningful when present is true).
func (e *ExtraData) Get(key string) (value string, present, isNull bool) {
	for i, k := range e.keys {
		if k == key {
			if e.values[i] == nil {
				return "", true, true
			}
			return *e.values[i], true, false
		}
	}
	return "", false, false
}

// EncodeExtra serializes the bag as a uint16 key count followed, per entry,
// by the length-prefixed UTF-8 key, a one-byte null flag (1 = null), and,
// only when the flag is 0, the length-prefixed UTF-8 value.
func EncodeExtra(e *ExtraData) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(e.keys))) //nolint:errcheck
	for i, k := range e.keys {
		writeString(&buf, k)
		if e.values[i] == nil {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
			writeString(&buf, *e.values[i])
		}
	}
	return buf.Bytes()
}

// DecodeExtra reverses EncodeExtra.
func DecodeExtra(data []byte) (*ExtraData, error) {
	r := bytes.NewReader(data)
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("envelope: decoding extra data count: %w", err)
	}

	e := NewExtraData()
	for i := uint16(0); i < count; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("envelope: decoding extra data key %d: %w", i, err)
		}
		isNull, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("envelope: decoding extra data null-flag %d: %w", i, err)
		}
		if isNull != 0 {
			e.SetNull(key)
			continue
		}
		value, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("envelope: decoding extra data value %d: %w", i, err)
		}
		e.Set(key, value)
	}
	return e, nil
}
