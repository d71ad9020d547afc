package ts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_MonotonicallyIncreasing(t *testing.T) {
	c := &Clock{}

	var prev Timestamp
	for i := 0; i < 1000; i++ {
		cur := c.Now()
		assert.True(t, cur.After(prev), "timestamp %d did not advance: prev=%v cur=%v", i, prev, cur)
		prev = cur
	}
}

func TestClock_ConcurrentMintingStaysUnique(t *testing.T) {
	c := &Clock{}

	const goroutines = 50
	const perGoroutine = 200

	results := make(chan Timestamp, goroutines*perGoroutine)
	done := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < perGoroutine; j++ {
				results <- c.Now()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}
	close(results)

	seen := make(map[Timestamp]bool)
	for r := range results {
		assert.False(t, seen[r], "duplicate timestamp minted: %v", r)
		seen[r] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestTimestamp_CompareOrdering(t *testing.T) {
	a := Timestamp{nanos: 100, seq: 1}
	b := Timestamp{nanos: 100, seq: 2}
	c := Timestamp{nanos: 200, seq: 1}

	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.True(t, c.After(a))
	assert.True(t, a.Equal(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestFormatParse_RoundTrip(t *testing.T) {
	want := Timestamp{nanos: 1700000000123456789, seq: 42}
	s := Format(want)
	got, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParse_Malformed(t *testing.T) {
	for _, s := range []string{"", "notanumber", "123", "123.notanumber"} {
		_, err := Parse(s)
		assert.Error(t, err, "expected error parsing %q", s)
	}
}

func TestUnixMilli(t *testing.T) {
	tsv := FromUnixMilli(1700000000123)
	assert.Equal(t, int64(1700000000123), tsv.UnixMilli())
}
