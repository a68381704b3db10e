package protocol

// Allocation limits guard against hostile length prefixes.
const (
	// DefaultMaxAllocation caps a single string or byte field (4MB).
	DefaultMaxAllocation = 4 * 1024 * 1024

	// HardMaxAllocation caps a whole frame payload (16MB). Models for large
	// list windows are the biggest payloads in practice.
	HardMaxAllocation = 16 * 1024 * 1024

	// MaxNameLength caps module and method names.
	MaxNameLength = 256
)
