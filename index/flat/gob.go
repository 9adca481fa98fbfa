package flat

import (
	"bytes"
	"encoding/gob"
	"io"
)

// GobEncode implements gob.GobEncoder.
func (f *Flat) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	if err := encoder.Encode(f.dimension); err != nil {
		return nil, err
	}

	if err := encoder.Encode(f.vectors); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (f *Flat) GobDecode(data []byte) error {
	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	if err := decoder.Decode(&f.dimension); err != nil {
		return err
	}

	if err := decoder.Decode(&f.vectors); err != nil {
		return err
	}

	return nil
}

// Save writes the index to w.
func (f *Flat) Save(w io.Writer) error {
	return gob.NewEncoder(w).Encode(f)
}

// Load reads an index previously written with Save.
func Load(r io.Reader) (*Flat, error) {
	f := &Flat{}
	if err := gob.NewDecoder(r).Decode(f); err != nil {
		return nil, err
	}
	return f, nil
}
