package codec

import "encoding/json"

// JSON is the standard-library JSON codec.
//
// Remote manifests are JSON so that they stay readable with generic tooling
// (aws s3 cp | jq, mc cat, a text editor).
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }
