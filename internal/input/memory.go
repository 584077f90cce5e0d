package input

import "golang.org/x/sys/unix"

// DefaultAvailableMemory is the conservative available-memory figure used when
// no estimator is configured. It is a heuristic lower bound, not a measurement.
const DefaultAvailableMemory uint64 = 2 << 30

// MemoryEstimator reports how much memory a read may reasonably use.
// The figure only shapes advisories; it never blocks a read.
type MemoryEstimator interface {
	AvailableMemory() uint64
}

// FixedEstimator always reports the same figure.
type FixedEstimator uint64

func (f FixedEstimator) AvailableMemory() uint64 { return uint64(f) }

// EstimatorFunc adapts a function to MemoryEstimator.
type EstimatorFunc func() uint64

func (f EstimatorFunc) AvailableMemory() uint64 { return f() }

// SystemEstimator queries the host through sysinfo(2) and reports free plus
// buffer RAM. Page cache is not counted, so the figure stays on the low side.
type SystemEstimator struct {
	// Fallback is reported when the query fails. Zero means DefaultAvailableMemory.
	Fallback uint64

	sysinfo func(*unix.Sysinfo_t) error
}

// NewSystemEstimator creates a SystemEstimator backed by unix.Sysinfo.
func NewSystemEstimator(fallback uint64) *SystemEstimator {
	return &SystemEstimator{Fallback: fallback, sysinfo: unix.Sysinfo}
}

func (s *SystemEstimator) AvailableMemory() uint64 {
	fallback := s.Fallback
	if fallback == 0 {
		fallback = DefaultAvailableMemory
	}
	query := s.sysinfo
	if query == nil {
		query = unix.Sysinfo
	}

	var info unix.Sysinfo_t
	if err := query(&info); err != nil {
		return fallback
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	avail := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit
	if avail == 0 {
		return fallback
	}
	return avail
}
