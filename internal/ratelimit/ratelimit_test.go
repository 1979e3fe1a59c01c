package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestAllowsUpToBurstThenBlocks(t *testing.T) {
	l := New(rate.Every(time.Hour), 2, time.Minute)
	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
}

func TestBucketsAreIndependentPerIP(t *testing.T) {
	l := New(rate.Every(time.Hour), 1, time.Minute)
	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"))
	assert.False(t, l.Allow("1.2.3.4"))
}
