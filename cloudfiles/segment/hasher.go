package segment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
)

const hashChunkSize = 64 * 1024

// Digest streams r through MD5 in fixed-size chunks and returns the lowercase hex sum,
// which is what the service reports as ETag.
func Digest(r io.Reader) (string, error) {
	hash := md5.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(hash, r, buf); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// DigestRange hashes [offset, offset+length) of src through a window of its own,
// leaving any other reader of src untouched.
func DigestRange(src io.ReaderAt, offset, length int64) (string, error) {
	return Digest(NewWindow(src, offset, length))
}
