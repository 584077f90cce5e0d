package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFixedEstimator(t *testing.T) {
	assert.Equal(t, uint64(42), FixedEstimator(42).AvailableMemory())
}

func TestEstimatorFunc(t *testing.T) {
	e := EstimatorFunc(func() uint64 { return 7 })
	assert.Equal(t, uint64(7), e.AvailableMemory())
}

func TestSystemEstimator_Query(t *testing.T) {
	e := NewSystemEstimator(0)
	e.sysinfo = func(info *unix.Sysinfo_t) error {
		info.Freeram = 100
		info.Bufferram = 28
		info.Unit = 4096
		return nil
	}
	assert.Equal(t, uint64(128*4096), e.AvailableMemory())
}

func TestSystemEstimator_Fallback(t *testing.T) {
	e := NewSystemEstimator(1234)
	e.sysinfo = func(*unix.Sysinfo_t) error { return unix.ENOSYS }
	assert.Equal(t, uint64(1234), e.AvailableMemory(), "fallback")

	e = NewSystemEstimator(0)
	e.sysinfo = func(*unix.Sysinfo_t) error { return nil }
	assert.Equal(t, uint64(DefaultAvailableMemory), e.AvailableMemory(), "default")
}

func TestSystemEstimator_Host(t *testing.T) {
	assert.NotZero(t, NewSystemEstimator(0).AvailableMemory(), "host estimate should never be zero")
}

func TestAdvise(t *testing.T) {
	const mb = 1 << 20
	cases := []struct {
		name      string
		size      int64
		available uint64
		want      []AdvisoryKind
	}{
		{"small", 2 * mb, 4096 * mb, nil},
		{"medium", 60 * mb, 4096 * mb, []AdvisoryKind{AdvisePreferChunked}},
		{"pressure", 60 * mb, 100 * mb, []AdvisoryKind{AdvisePreferChunked, AdviseMemoryPressure}},
		{"huge", 2048 * mb, 2048 * mb, []AdvisoryKind{AdvisePreferChunked, AdviseMemoryPressure, AdviseVeryLarge}},
		{"empty", 0, 0, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Advise(c.size, c.available, DefaultThresholds())
			require.Len(t, got, len(c.want), "%+v", got)
			for i, a := range got {
				assert.Equal(t, c.want[i], a.Kind, "advisory[%d]", i)
				assert.NotEmpty(t, a.Message, "advisory[%d] has no message", i)
			}
		})
	}
}
