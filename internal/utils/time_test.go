package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUTCNowUnixMilli(t *testing.T) {
	now := UTCNowUnixMilli()

	// Milliseconds, not seconds: 13 digits for any current date
	assert.Greater(t, now, int64(1e12))
	assert.InDelta(t, time.Now().UnixMilli(), now, 1000)
}
