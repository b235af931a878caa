package fabric

import (
	"fmt"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/pkg/errors"
)

// SwitchName names the n-th (0-based) switch of a model.
func SwitchName(shortName string, n int) string {
	return fmt.Sprintf("%s-%02d", shortName, n+1)
}

func (r *fabric) populateNodes() error {
	// spines
	if err := r.processTier(RoleSpine, r.spineProfile, r.req.Spine.Count, 0); err != nil {
		return err
	}
	// leaves continue the numbering of the spines when both use the same
	// short name
	offset := 0
	if r.leafProfile.ShortName == r.spineProfile.ShortName {
		offset = r.req.Spine.Count
	}
	if err := r.processTier(RoleLeaf, r.leafProfile, r.req.Leaf.Count, offset); err != nil {
		return err
	}
	// servers
	for n := 0; n < r.req.ServerCount; n++ {
		if err := r.addNode(&nodeInfo{
			graphIndex: r.graph.NewNode().ID(),
			fabric:     r.req.Name,
			name:       ServerName(n),
			role:       RoleServer,
			index:      n,
		}); err != nil {
			return err
		}
	}

	for name := range r.req.Serials {
		if _, ok := r.switches[name]; !ok {
			r.log.Info("serial given for unknown switch", "switch", name)
		}
	}
	return nil
}

func (r *fabric) processTier(role Role, p *catalog.SwitchProfile, count, offset int) error {
	for n := 0; n < count; n++ {
		name := SwitchName(p.ShortName, offset+n)
		if err := r.addNode(&nodeInfo{
			graphIndex: r.graph.NewNode().ID(),
			fabric:     r.req.Name,
			name:       name,
			role:       role,
			index:      n,
			model:      p.Model,
		}); err != nil {
			return err
		}

		s := NewSwitchInstance(name, n, role, p)
		s.Serial = r.req.Serials[name]
		r.switches[name] = s
		switch role {
		case RoleSpine:
			r.spines = append(r.spines, s)
		case RoleLeaf:
			r.leaves = append(r.leaves, s)
		}
	}
	return nil
}

func (r *fabric) addNode(ni *nodeInfo) error {
	if _, ok := r.nodes[ni.name]; ok {
		return errors.Errorf("duplicate node name %s", ni.name)
	}
	n := NewNode(ni)
	r.nodes[ni.name] = n
	r.graph.AddNode(n)
	return nil
}
