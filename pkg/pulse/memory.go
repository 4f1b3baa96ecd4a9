package pulse

import (
	"fmt"
	"os"
	"runtime/metrics"
	"sync/atomic"

	"github.com/shirou/gopsutil/v4/process"
)

// MemorySampler reports process memory for load attribution.
//
// Samplers are shared by every request, so they report only the current
// value. Peaks are tracked per request by the session.
type MemorySampler interface {
	// Current returns memory in use right now, in bytes.
	Current() uint64
}

// ProcessMemory samples the resident set size of the current process.
type ProcessMemory struct {
	proc *process.Process
}

// NewProcessMemory returns a sampler bound to the running process.
func NewProcessMemory() (*ProcessMemory, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, fmt.Errorf("failed to open current process: %w", err)
	}
	return &ProcessMemory{proc: proc}, nil
}

// Current implements MemorySampler. Read errors count as zero.
func (m *ProcessMemory) Current() uint64 {
	info, err := m.proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// HeapMemory samples live Go heap objects.
type HeapMemory struct{}

// NewHeapMemory returns a heap-based sampler.
func NewHeapMemory() *HeapMemory {
	return &HeapMemory{}
}

// Current implements MemorySampler.
func (*HeapMemory) Current() uint64 {
	sample := []metrics.Sample{{Name: heapObjectsMetric}}
	metrics.Read(sample)
	if sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return sample[0].Value.Uint64()
}

// memoryWindow is a MemorySampler that remembers the highest value it has
// sampled since it was created. Each session owns one.
type memoryWindow struct {
	src  MemorySampler
	peak atomic.Uint64
}

func newMemoryWindow(src MemorySampler) *memoryWindow {
	if src == nil {
		src = zeroMemory{}
	}
	return &memoryWindow{src: src}
}

// Current samples the source and raises the window peak.
func (w *memoryWindow) Current() uint64 {
	v := w.src.Current()
	raise(&w.peak, v)
	return v
}

// Peak returns the highest value sampled through this window.
func (w *memoryWindow) Peak() uint64 {
	return w.peak.Load()
}

// raise stores v in peak if it is higher than the value already there.
func raise(peak *atomic.Uint64, v uint64) {
	for {
		old := peak.Load()
		if v <= old || peak.CompareAndSwap(old, v) {
			return
		}
	}
}

type zeroMemory struct{}

func (zeroMemory) Current() uint64 { return 0 }

// NewMemorySampler builds the sampler named by source ("process" or "heap").
// It falls back to the heap sampler when process stats are unavailable.
func NewMemorySampler(source string) MemorySampler {
	if source == "heap" {
		return NewHeapMemory()
	}
	if m, err := NewProcessMemory(); err == nil {
		return m
	}
	return NewHeapMemory()
}
