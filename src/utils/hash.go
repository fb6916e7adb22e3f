package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
)

// HashStruct returns the hex sha256 of the gob encoding of v, namespaced by
// prefix so that equal values of different kinds never collide.
func HashStruct(prefix string, v interface{}) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(prefix)

	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return "", fmt.Errorf("HashStruct: encode: %w", err)
	}

	return fmt.Sprintf("%s:%x", prefix, sha256.Sum256(buf.Bytes())), nil
}
