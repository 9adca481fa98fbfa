// Package codec centralizes encoding of remote persisted documents (backup
// manifests and the latest pointer).
//
// Codec selection is a breaking-change boundary: bytes written by one codec
// may not decode under another.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used for all persisted payloads unless overridden.
var Default Codec = JSON{}
