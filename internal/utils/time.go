package utils

import "time"

// UTCNowUnixMilli returns the current UTC time in epoch milliseconds,
// the representation the created_date and last_updated envelope fields
// are stored in.
func UTCNowUnixMilli() int64 {
	return time.Now().UTC().UnixMilli()
}
