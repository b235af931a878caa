package catalog

import (
	"fmt"
	"slices"
)

type PortRole string

const (
	PortRoleManagement PortRole = "management"
	PortRoleFabric     PortRole = "fabric"
	PortRoleServer     PortRole = "server"
)

func (r PortRole) Valid() bool {
	switch r {
	case PortRoleManagement, PortRoleFabric, PortRoleServer:
		return true
	}
	return false
}

// BreakoutMode is one way of splitting a physical port into sub-ports.
type BreakoutMode struct {
	Name         string `json:"name"`
	SubPortCount int    `json:"subPortCount"`
	SubPortSpeed Speed  `json:"subPortSpeed"`
}

type PortSpec struct {
	ID    string     `json:"id"`
	Roles []PortRole `json:"roles"`
	// BaseSpeed is the speed of the port when it is not broken out.
	BaseSpeed Speed `json:"baseSpeed"`
	// Speeds lists the fixed speeds a non-breakout port can be configured to.
	Speeds          []Speed        `json:"speeds,omitempty"`
	BreakoutModes   []BreakoutMode `json:"breakoutModes,omitempty"`
	DefaultBreakout string         `json:"defaultBreakout,omitempty"`
}

func (p *PortSpec) HasRole(role PortRole) bool {
	return slices.Contains(p.Roles, role)
}

// SupportsFixedSpeed reports whether the port, without breakout, runs at s.
func (p *PortSpec) SupportsFixedSpeed(s Speed) bool {
	return p.BaseSpeed == s || slices.Contains(p.Speeds, s)
}

// LogicalPortsAt returns the largest number of logical ports the port can offer
// at speed s.
func (p *PortSpec) LogicalPortsAt(s Speed) int {
	max := 0
	for _, m := range p.BreakoutModes {
		if m.SubPortSpeed == s && m.SubPortCount > max {
			max = m.SubPortCount
		}
	}
	if max == 0 && p.SupportsFixedSpeed(s) {
		return 1
	}
	return max
}

// DefaultSpeed is the per-logical-port speed of the port in its default state.
func (p *PortSpec) DefaultSpeed() Speed {
	for _, m := range p.BreakoutModes {
		if m.Name == p.DefaultBreakout {
			return m.SubPortSpeed
		}
	}
	return p.BaseSpeed
}

// SwitchProfile is the immutable port inventory of one switch model.
type SwitchProfile struct {
	Model       string     `json:"model"`
	DisplayName string     `json:"displayName"`
	ShortName   string     `json:"shortName"`
	Ports       []PortSpec `json:"ports"`

	index map[string]int
}

func (sp *SwitchProfile) Port(id string) (*PortSpec, bool) {
	i, ok := sp.index[id]
	if !ok {
		return nil, false
	}
	return &sp.Ports[i], true
}

// PortsForRole returns the ids of all ports allowed for role, in catalog order.
func (sp *SwitchProfile) PortsForRole(role PortRole) []string {
	ids := make([]string, 0)
	for i := range sp.Ports {
		if sp.Ports[i].HasRole(role) {
			ids = append(ids, sp.Ports[i].ID)
		}
	}
	return ids
}

// LogicalCapacity returns the maximum number of logical ports obtainable at
// speed s from the given physical ports. Unknown ports count as zero.
func (sp *SwitchProfile) LogicalCapacity(ports []string, s Speed) int {
	total := 0
	for _, id := range ports {
		if p, ok := sp.Port(id); ok {
			total += p.LogicalPortsAt(s)
		}
	}
	return total
}

// DefaultSpeedForRole is the default speed of the first port carrying role.
func (sp *SwitchProfile) DefaultSpeedForRole(role PortRole) Speed {
	for i := range sp.Ports {
		if sp.Ports[i].HasRole(role) {
			return sp.Ports[i].DefaultSpeed()
		}
	}
	return 0
}

func (sp *SwitchProfile) buildIndex() error {
	sp.index = make(map[string]int, len(sp.Ports))
	for i, p := range sp.Ports {
		if _, ok := sp.index[p.ID]; ok {
			return fmt.Errorf("profile %s: duplicate port %s", sp.Model, p.ID)
		}
		sp.index[p.ID] = i
	}
	return nil
}
