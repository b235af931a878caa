package fabric

import (
	"fmt"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/pkg/errors"
)

var (
	ErrInvalidRequest                  = errors.New("invalid fabric request")
	ErrCapacityExceeded                = errors.New("capacity exceeded")
	ErrUnevenFabricFanout              = errors.New("uneven fabric fanout")
	ErrInsufficientLeavesForRedundancy = errors.New("insufficient leaves for redundancy mode")
	ErrInsufficientPorts               = errors.New("insufficient ports")
	ErrInvalidConnectionCount          = errors.New("invalid connections per server")
)

// CapacityError reports a switch role that cannot offer the logical ports a
// request needs.
type CapacityError struct {
	Switch    string
	Role      catalog.PortRole
	Speed     catalog.Speed
	Required  int
	Available int
}

func (e *CapacityError) Shortfall() int { return e.Required - e.Available }

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s %s ports: %d required at %s, %d available (short by %d)",
		e.Switch, e.Role, e.Required, e.Speed, e.Available, e.Shortfall())
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacityExceeded }

// InsufficientPortsError is returned by the allocator when the candidate ports
// run out before the requirement is met.
type InsufficientPortsError struct {
	Required  int
	Shortfall int
	Speed     catalog.Speed
}

func (e *InsufficientPortsError) Error() string {
	return fmt.Sprintf("insufficient ports: %d logical ports at %s required, short by %d",
		e.Required, e.Speed, e.Shortfall)
}

func (e *InsufficientPortsError) Is(target error) bool { return target == ErrInsufficientPorts }
