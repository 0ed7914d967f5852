package cache

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Checksum returns a hex BLAKE3 digest over an ordered list of tuples.
// Every field is length-prefixed so ("ab","c") and ("a","bc") differ.
func Checksum(tuples ...[]string) string {
	h := blake3.New()
	var lenBuf [binary.MaxVarintLen64]byte
	for _, tuple := range tuples {
		n := binary.PutUvarint(lenBuf[:], uint64(len(tuple)))
		_, _ = h.Write(lenBuf[:n])
		for _, field := range tuple {
			n = binary.PutUvarint(lenBuf[:], uint64(len(field)))
			_, _ = h.Write(lenBuf[:n])
			_, _ = h.Write([]byte(field))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
