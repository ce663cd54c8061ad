package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_AlwaysOpenWhenUnset(t *testing.T) {
	for _, now := range []int64{0, 1, 1_700_000_000_000, 9_999_999_999_999} {
		d := Evaluate(now, 0, 3600)
		assert.Equal(t, Open, d.State, "now=%d", now)
		assert.Equal(t, now, d.ServerNow)
	}
}

func TestEvaluate_Window(t *testing.T) {
	const (
		openAt   = int64(1_700_000_000_000)
		duration = int64(3600)
		endAt    = openAt + duration*1000
	)

	tests := []struct {
		name string
		now  int64
		want State
	}{
		{"well before open", openAt - 60_000, Locked},
		{"one ms before open", openAt - 1, Locked},
		{"exactly at open", openAt, Open},
		{"mid window", openAt + 1000, Open},
		{"exactly at end", endAt, Open},
		{"one ms past end", endAt + 1, Expired},
		{"long past end", endAt + 86_400_000, Expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.now, openAt, duration)
			assert.Equal(t, tt.want, d.State)
			assert.Equal(t, tt.now, d.ServerNow)
			assert.Equal(t, openAt, d.OpenAtUTC)
			assert.Equal(t, endAt, d.EndAtUTC)
		})
	}
}

func TestEvaluate_ZeroDurationNeverExpires(t *testing.T) {
	const openAt = int64(1_700_000_000_000)

	d := Evaluate(openAt+999_999_999_999, openAt, 0)
	assert.Equal(t, Open, d.State)

	d = Evaluate(openAt-1, openAt, 0)
	assert.Equal(t, Locked, d.State)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "locked", Locked.String())
	assert.Equal(t, "expired", Expired.String())
}
