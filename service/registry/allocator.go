package registry

import "fmt"

// DefaultBasePort is the first port handed out when a start request
// does not specify one.
const DefaultBasePort = 38801

const maxPort = 65535

// PortAllocator hands out monotonically increasing port numbers. Ports
// are never reused, even after the worker that held one stops, which
// rules out port-reuse races for auto-assigned ports. The allocator is
// not safe for concurrent use on its own; the registry serialises all
// calls under its lock.
type PortAllocator struct {
	next int
}

// NewPortAllocator creates an allocator starting at base, or at
// DefaultBasePort when base is zero.
func NewPortAllocator(base int) *PortAllocator {
	if base <= 0 {
		base = DefaultBasePort
	}
	return &PortAllocator{next: base}
}

// Next returns the next free port and advances the counter. It fails
// once the counter passes the valid port range.
func (a *PortAllocator) Next() (int, error) {
	if a.next > maxPort {
		return 0, fmt.Errorf("port space exhausted (next candidate %v)", a.next)
	}
	port := a.next
	a.next++
	return port, nil
}
