package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// BookHash returns the identity of a book body: the hex md5 of its bytes.
// Remote libraries written by other clients key directories by this value,
// so the algorithm cannot change.
func BookHash(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}
