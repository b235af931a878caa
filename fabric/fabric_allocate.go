package fabric

import (
	"strconv"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

// PortAssignment is one physical port committed to a consumer, possibly broken
// out into sub-ports.
type PortAssignment struct {
	PhysicalPortID string        `json:"physicalPortId"`
	Speed          catalog.Speed `json:"speed"`
	// BreakoutMode is empty when the port runs unbroken
	BreakoutMode string   `json:"breakoutMode,omitempty"`
	SubPortIDs   []string `json:"subPortIds"`
}

// Allocate walks the candidate ports in order and collects at least required
// logical ports running at speed. Per port it prefers the breakout mode whose
// sub-port count matches what is still missing, then the smallest mode that
// covers it, then the largest one. A port without a matching mode is used as a
// single logical port when it runs at speed unbroken, and skipped otherwise.
func Allocate(candidates []string, required int, speed catalog.Speed, profile *catalog.SwitchProfile) ([]PortAssignment, error) {
	if required <= 0 {
		return nil, nil
	}
	remaining := required
	assignments := make([]PortAssignment, 0)
	for _, id := range candidates {
		if remaining <= 0 {
			break
		}
		p, ok := profile.Port(id)
		if !ok {
			continue
		}
		a, ok := assignPort(p, remaining, speed)
		if !ok {
			continue
		}
		assignments = append(assignments, a)
		remaining -= len(a.SubPortIDs)
	}
	if remaining > 0 {
		return nil, &InsufficientPortsError{Required: required, Shortfall: remaining, Speed: speed}
	}
	return assignments, nil
}

func assignPort(p *catalog.PortSpec, remaining int, speed catalog.Speed) (PortAssignment, bool) {
	var exact, cover, largest *catalog.BreakoutMode
	for i := range p.BreakoutModes {
		m := &p.BreakoutModes[i]
		if m.SubPortSpeed != speed {
			continue
		}
		switch {
		case m.SubPortCount == remaining:
			if exact == nil {
				exact = m
			}
		case m.SubPortCount > remaining:
			if cover == nil || m.SubPortCount < cover.SubPortCount {
				cover = m
			}
		}
		if largest == nil || m.SubPortCount > largest.SubPortCount {
			largest = m
		}
	}

	mode := exact
	if mode == nil {
		mode = cover
	}
	if mode == nil {
		mode = largest
	}
	if mode != nil {
		return PortAssignment{
			PhysicalPortID: p.ID,
			Speed:          speed,
			BreakoutMode:   mode.Name,
			SubPortIDs:     subPortIDs(p.ID, mode.SubPortCount),
		}, true
	}
	if p.SupportsFixedSpeed(speed) {
		return PortAssignment{
			PhysicalPortID: p.ID,
			Speed:          speed,
			SubPortIDs:     []string{p.ID},
		}, true
	}
	return PortAssignment{}, false
}

func subPortIDs(id string, n int) []string {
	if n == 1 {
		return []string{id}
	}
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, id+"/"+strconv.Itoa(i))
	}
	return ids
}

// logicalPorts flattens the assignments into their first n logical ports.
func logicalPorts(assignments []PortAssignment, n int) []string {
	ports := make([]string, 0, n)
	for _, a := range assignments {
		for _, id := range a.SubPortIDs {
			if len(ports) == n {
				return ports
			}
			ports = append(ports, id)
		}
	}
	return ports
}

// allocate runs the allocator over the uncommitted candidates of the switch.
// The assignments are checked against a scratch copy of the used ports and
// committed only when the whole requirement is met.
func (s *SwitchInstance) allocate(candidates []string, required int, speed catalog.Speed) ([]string, error) {
	assignments, err := Allocate(freePorts(s, candidates), required, speed, s.Profile)
	if err != nil {
		return nil, errors.Wrapf(err, "switch %s", s.ID)
	}

	scratch := s.UsedPorts.Clone()
	for _, a := range assignments {
		if scratch.Has(a.PhysicalPortID) {
			return nil, errors.Errorf("switch %s: port %s is already committed", s.ID, a.PhysicalPortID)
		}
		scratch.Insert(a.PhysicalPortID)
	}
	s.UsedPorts = scratch
	s.Assignments = append(s.Assignments, assignments...)
	return logicalPorts(assignments, required), nil
}

// reserve commits the given physical ports unbroken at their default speed.
func (s *SwitchInstance) reserve(ids ...string) error {
	scratch := s.UsedPorts.Clone()
	assignments := make([]PortAssignment, 0, len(ids))
	for _, id := range ids {
		p, ok := s.Profile.Port(id)
		if !ok {
			return errors.Errorf("switch %s: unknown port %s", s.ID, id)
		}
		if scratch.Has(id) {
			return errors.Errorf("switch %s: port %s is already committed", s.ID, id)
		}
		scratch.Insert(id)
		assignments = append(assignments, PortAssignment{
			PhysicalPortID: id,
			Speed:          p.DefaultSpeed(),
			SubPortIDs:     []string{id},
		})
	}
	s.UsedPorts = scratch
	s.Assignments = append(s.Assignments, assignments...)
	return nil
}

// switchState is the committed port state of a set of switches, taken before a
// multi-switch allocation so a failure can put every switch back.
type switchState struct {
	switches    []*SwitchInstance
	used        []sets.Set[string]
	assignments []int
}

func saveSwitches(groups ...[]*SwitchInstance) *switchState {
	st := &switchState{}
	for _, g := range groups {
		for _, s := range g {
			st.switches = append(st.switches, s)
			st.used = append(st.used, s.UsedPorts.Clone())
			st.assignments = append(st.assignments, len(s.Assignments))
		}
	}
	return st
}

func (st *switchState) restore() {
	for i, s := range st.switches {
		s.UsedPorts = st.used[i]
		s.Assignments = s.Assignments[:st.assignments[i]]
	}
}
