package battle

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Encode serializes a battle state so it can be resumed later.
func Encode(s State) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode battle state: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode restores a battle state produced by Encode.
func Decode(data []byte) (State, error) {
	var s State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return State{}, fmt.Errorf("decode battle state: %w", err)
	}
	return s, nil
}
