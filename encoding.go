package blazedb

import "encoding/json"

// Marshaler encodes/decodes arbitrary values to/from bytes. The layout
// file, the indexes sidecar, and document payloads all go through the
// package-level DefaultMarshaler, which callers may swap out.
type Marshaler interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonMarshaler struct{}

// NewMarshaler returns the default Marshaler, which uses encoding/json.
// JSON was kept as the wire format for the layout/indexes sidecars because
// they must stay a "self-describing dictionary" per spec, and JSON is
// trivially diffable/inspectable by hand during recovery.
func NewMarshaler() Marshaler {
	return jsonMarshaler{}
}

func (jsonMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonMarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// DefaultMarshaler is used by layout, journal, and document serialization
// unless a component is explicitly given another Marshaler.
var DefaultMarshaler = NewMarshaler()
