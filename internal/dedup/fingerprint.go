// Package dedup computes the content fingerprint used to short-circuit
// duplicate uploads before any storage or transcoding work happens.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
)

// Fingerprint digests the content bytes together with the owning user id.
// The owner is folded in so the same file uploaded by two users produces
// two distinct fingerprints: dedup never leaks one user's artifacts to
// another.
func Fingerprint(r io.Reader, ownerID string) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to digest content: %w", err)
	}
	contentMD5 := hex.EncodeToString(h.Sum(nil))

	combined := md5.Sum([]byte(contentMD5 + ":" + ownerID))
	return hex.EncodeToString(combined[:]), nil
}
