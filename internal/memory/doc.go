// Package memory keeps context assembly within a process memory target.
//
// MemoryManager samples the resident set size of the process against total
// system memory (or a configured limit). While usage is at or below the
// target percentage the requested token budget is returned unchanged. Above
// it, the budget shrinks linearly with pressure down to a floor, and the
// registered evictors are asked to release their least recently used state.
// Pressure is never an error; it is reported through Advice.
package memory
