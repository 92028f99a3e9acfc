package service

import (
	"fmt"
	"time"
)

// OriginalKey builds the date-partitioned storage key for an uploaded
// original. The id is the upload's job id, so the key stays stable across
// deduplicated re-uploads.
func OriginalKey(now time.Time, id, ext string) string {
	if ext == "" {
		return fmt.Sprintf("original/%s/%s", now.Format("2006/01/02"), id)
	}
	return fmt.Sprintf("original/%s/%s.%s", now.Format("2006/01/02"), id, ext)
}
