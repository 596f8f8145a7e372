package rfc9111

import (
	"errors"
	"strconv"
	"time"
)

// §  1.2.2. Delta Seconds
// §
// §  The delta-seconds rule specifies a non-negative integer, representing time
// §  in seconds.
// §
// §      delta-seconds  = 1*DIGIT
// §
// §  A recipient parsing a delta-seconds value and converting it to binary form
// §  ought to use an arithmetic type of at least 31 bits of non-negative integer
// §  range. If a cache receives a delta-seconds value greater than the greatest
// §  integer it can represent, or if any of its subsequent calculations overflows,
// §  the cache MUST consider the value to be 2147483648 (2^31) or the greatest
// §  positive integer it can conveniently represent.
const maxDeltaSeconds = 2147483648

// deltaSeconds parses a delta-seconds value.
// The boolean is false if secondsStr is not 1*DIGIT.
func deltaSeconds(secondsStr string) (time.Duration, bool) {
	if secondsStr == "" {
		return 0, false
	}
	for _, c := range secondsStr {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	seconds, err := strconv.ParseUint(secondsStr, 10, 64)
	if errors.Is(err, strconv.ErrRange) || seconds > maxDeltaSeconds {
		seconds = maxDeltaSeconds
	} else if err != nil {
		return 0, false
	}
	return time.Second * time.Duration(seconds), true
}
