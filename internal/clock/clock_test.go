package clock

import "testing"

func TestMinuteBucket(t *testing.T) {
	cases := []struct {
		epochMS int64
		want    int64
	}{
		{0, 0},
		{59_999, 0},
		{60_000, 60},
		{65_384_570_945, 65_384_520},
	}
	for _, c := range cases {
		if got := MinuteBucket(c.epochMS); got != c.want {
			t.Errorf("MinuteBucket(%d) = %d, want %d", c.epochMS, got, c.want)
		}
	}
}

func TestDayBucket(t *testing.T) {
	cases := []struct {
		epochMS int64
		want    int64
	}{
		{0, 0},
		{86_399_999, 0},
		{86_400_000, 86_400_000},
		{100_000_000, 86_400_000},
	}
	for _, c := range cases {
		if got := DayBucket(c.epochMS); got != c.want {
			t.Errorf("DayBucket(%d) = %d, want %d", c.epochMS, got, c.want)
		}
	}
}

func TestBootEpochEpochNS(t *testing.T) {
	b := BootEpoch{OffsetNS: 1_000_000_000}
	if got := b.EpochNS(500); got != 1_000_000_500 {
		t.Errorf("EpochNS = %d, want 1000000500", got)
	}
}
