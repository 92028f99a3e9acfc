package worker

import (
	"fmt"
	"time"
)

// TranscodedKey builds the date-partitioned storage key for an encoded
// video. The job id keeps re-runs from colliding with other uploads.
func TranscodedKey(now time.Time, jobID string) string {
	return fmt.Sprintf("video/%s/%s.mp4", now.Format("2006/01/02"), jobID)
}
