package accum

import "testing"

func TestComputeSchedSampleSinceStartOnlyWhenNonZero(t *testing.T) {
	content := `
se.sum_exec_runtime                         :      1000.000000
se.sum_sleep_runtime                        :       200.000000
se.sum_block_runtime                        :        50.000000
se.wait_start                               :         0.000000
se.sleep_start                              :       900.000000
se.block_start                              :         0.000000
se.statistics.wait_sum                      :        10.000000
se.statistics.iowait_sum                    :         5.000000
`
	got := computeSchedSample(content, 1000)

	if got.Runtime != 1000 {
		t.Errorf("runtime = %v, want 1000", got.Runtime)
	}
	// wait_start is 0.000000 -> rq_time is wait_sum alone, no since-start addition.
	if got.RqTime != 10 {
		t.Errorf("rq_time = %v, want 10", got.RqTime)
	}
	// sleep_start is nonzero -> sleep_time includes max(now-sleep_start, 0).
	if got.SleepTime != 200+100 {
		t.Errorf("sleep_time = %v, want 300", got.SleepTime)
	}
	// block_start is 0.000000 -> block_time is sum_block_runtime alone.
	if got.BlockTime != 50 {
		t.Errorf("block_time = %v, want 50", got.BlockTime)
	}
	if got.IowaitTime != 5 {
		t.Errorf("iowait_time = %v, want 5", got.IowaitTime)
	}
}
