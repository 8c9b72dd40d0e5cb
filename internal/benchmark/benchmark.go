// Package benchmark times repeated estimator runs and their memory use.
package benchmark

import (
	"encoding/csv"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/MeKo-Tech/mvgeo/internal/common"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64 // Currently allocated bytes
	TotalAllocBytes uint64 // Total allocated bytes (cumulative)
	Mallocs         uint64
	NumGC           uint32
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		Mallocs:         m.Mallocs,
		NumGC:           m.NumGC,
	}
}

// Result holds the outcome of one benchmark.
type Result struct {
	Name         string        `json:"name" yaml:"name"`
	Iterations   int           `json:"iterations" yaml:"iterations"`
	Duration     time.Duration `json:"duration_ns" yaml:"duration_ns"`
	MemoryBefore MemoryStats   `json:"-" yaml:"-"`
	MemoryAfter  MemoryStats   `json:"-" yaml:"-"`
	Error        error         `json:"-" yaml:"-"`
}

// PerOp is the mean wall time of one iteration.
func (r Result) PerOp() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// BytesPerOp is the mean number of bytes allocated by one iteration.
func (r Result) BytesPerOp() uint64 {
	if r.Iterations <= 0 {
		return 0
	}
	return (r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) / uint64(r.Iterations)
}

// AllocsPerOp is the mean number of heap allocations of one iteration.
func (r Result) AllocsPerOp() uint64 {
	if r.Iterations <= 0 {
		return 0
	}
	return (r.MemoryAfter.Mallocs - r.MemoryBefore.Mallocs) / uint64(r.Iterations)
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, %d B/op, %d allocs/op",
		r.Name, r.Iterations, r.PerOp(), r.Duration.Round(time.Microsecond), r.BytesPerOp(), r.AllocsPerOp())
}

// Benchmark is one named function run repeatedly.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	mu         sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Names lists the registered benchmarks in order.
func (s *Suite) Names() []string {
	names := make([]string, len(s.benchmarks))
	for i, b := range s.benchmarks {
		names[i] = b.Name
	}
	return names
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	for _, b := range s.benchmarks {
		if b.Name == name {
			return runBenchmark(b, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs all benchmarks in the suite.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, runBenchmark(b, iterations))
	}
	return s.results
}

// runBenchmark stops at the first failing iteration.
func runBenchmark(b Benchmark, iterations int) Result {
	runtime.GC()
	memBefore := GetMemoryStats()

	timer := common.NewNamedTimer(b.Name)
	done := 0
	var err error
	for range iterations {
		if err = b.Func(); err != nil {
			break
		}
		done++
	}
	duration := timer.Stop()

	return Result{
		Name:         b.Name,
		Iterations:   done,
		Duration:     duration,
		MemoryBefore: memBefore,
		MemoryAfter:  GetMemoryStats(),
		Error:        err,
	}
}

// Results returns the last run results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// WriteText prints one line per result.
func WriteText(w io.Writer, results []Result) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range results {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

// WriteCSV writes the results as a table with a header row.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "iterations", "ns_per_op", "bytes_per_op", "allocs_per_op", "error"}); err != nil {
		return err
	}
	for _, r := range results {
		errText := ""
		if r.Error != nil {
			errText = r.Error.Error()
		}
		row := []string{
			r.Name,
			strconv.Itoa(r.Iterations),
			strconv.FormatInt(r.PerOp().Nanoseconds(), 10),
			strconv.FormatUint(r.BytesPerOp(), 10),
			strconv.FormatUint(r.AllocsPerOp(), 10),
			errText,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
