package common

import (
	"fmt"
	"runtime"
)

// MemoryStats is a summary of runtime memory usage, logged after long runs.
type MemoryStats struct {
	Alloc      uint64
	TotalAlloc uint64
	Sys        uint64
	HeapInuse  uint64
	NumGC      uint32
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		HeapInuse:  m.HeapInuse,
		NumGC:      m.NumGC,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, Heap: %d KB, GC: %d",
		m.Alloc/1024,
		m.TotalAlloc/1024,
		m.Sys/1024,
		m.HeapInuse/1024,
		m.NumGC)
}
