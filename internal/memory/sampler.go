package memory

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Sampler reports process memory and the reference it is measured against.
type Sampler interface {
	Sample(ctx context.Context) (rss, reference uint64, err error)
}

// ProcessSampler samples the current process with gopsutil.
type ProcessSampler struct {
	proc  *process.Process
	limit uint64
}

// NewProcessSampler creates a sampler for the running process. A zero limit
// measures against total system memory.
func NewProcessSampler(limitBytes uint64) (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("opening process: %w", err)
	}
	return &ProcessSampler{proc: proc, limit: limitBytes}, nil
}

// Sample returns the resident set size and the reference memory.
func (s *ProcessSampler) Sample(ctx context.Context) (uint64, uint64, error) {
	info, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("reading process memory: %w", err)
	}

	reference := s.limit
	if reference == 0 {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("reading system memory: %w", err)
		}
		reference = vm.Total
	}
	return info.RSS, reference, nil
}
