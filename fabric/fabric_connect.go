package fabric

import (
	"sort"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/template"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
)

const loopbackPortCount = 2

func fabricConnectionName(spine, leaf string) string {
	return spine + "--fabric--" + leaf
}

func loopbackConnectionName(leaf string) string {
	return leaf + "--vpc-loopback"
}

// loopbackPorts returns the last two server ports of the profile that run at
// the same default speed, so the loopback cable can come up.
func loopbackPorts(p *catalog.SwitchProfile) ([]string, error) {
	ports := p.PortsForRole(catalog.PortRoleServer)
	byID := make(map[string]catalog.Speed, len(ports))
	for _, id := range ports {
		if spec, ok := p.Port(id); ok {
			byID[id] = spec.DefaultSpeed()
		}
	}
	for b := len(ports) - 1; b > 0; b-- {
		for a := b - 1; a >= 0; a-- {
			if byID[ports[a]] == byID[ports[b]] {
				return []string{ports[a], ports[b]}, nil
			}
		}
	}
	return nil, errors.Wrapf(ErrInsufficientPorts, "model %s has no %d server ports of the same speed for the vpc loopback",
		p.Model, loopbackPortCount)
}

// GenerateFabricLinks cables every leaf to every spine with
// fabricPortsPerLeaf / spineCount links per pair and adds one vpc loopback per
// leaf.
//
// Each switch first takes its fabric ports from the allocator at the fabric
// speed. Link u between leaf i and spine j then uses
//
//	leaf port  j*linksPerSpine + u
//	spine port i*linksPerSpine + u
//
// of those ports, so no two pairs ever share a port on either side.
func GenerateFabricLinks(leaves, spines []*SwitchInstance, req *template.FabricRequest) ([]LinkRecord, error) {
	if len(spines) == 0 || len(leaves) == 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "a fabric needs at least one spine and one leaf")
	}
	uplinks := req.Leaf.FabricPortsPerLeaf
	if uplinks%len(spines) != 0 || uplinks/len(spines) < 1 {
		return nil, errors.Wrapf(ErrUnevenFabricFanout, "%d uplinks per leaf cannot be spread evenly over %d spines",
			uplinks, len(spines))
	}
	speed := req.FabricSpeed
	if speed == 0 {
		speed = leaves[0].Profile.DefaultSpeedForRole(catalog.PortRoleFabric)
	}

	// a failure leaves every switch as it was handed in
	saved := saveSwitches(leaves, spines)
	links, err := cableFabric(leaves, spines, uplinks, speed)
	if err != nil {
		saved.restore()
		return nil, err
	}
	return links, nil
}

func cableFabric(leaves, spines []*SwitchInstance, uplinks int, speed catalog.Speed) ([]LinkRecord, error) {
	linksPerSpine := uplinks / len(spines)

	// loopback ports are reserved before any uplink is allocated
	loopbacks := make([]LinkRecord, 0, len(leaves))
	for _, leaf := range leaves {
		ports, err := loopbackPorts(leaf.Profile)
		if err != nil {
			return nil, errors.Wrapf(err, "switch %s", leaf.ID)
		}
		if err := leaf.reserve(ports...); err != nil {
			return nil, err
		}
		loopbacks = append(loopbacks, LinkRecord{
			Kind:    LinkKindLoopback,
			A:       Endpoint{DeviceID: leaf.ID, PortID: ports[0]},
			B:       Endpoint{DeviceID: leaf.ID, PortID: ports[1]},
			GroupID: loopbackConnectionName(leaf.ID),
		})
	}

	leafPorts := make([][]string, len(leaves))
	for i, leaf := range leaves {
		ports, err := leaf.allocate(leaf.Profile.PortsForRole(catalog.PortRoleFabric), uplinks, speed)
		if err != nil {
			return nil, errors.Wrap(err, "fabric ports")
		}
		leafPorts[i] = ports
	}
	spinePorts := make([][]string, len(spines))
	for j, spine := range spines {
		ports, err := spine.allocate(spine.Profile.PortsForRole(catalog.PortRoleFabric), len(leaves)*linksPerSpine, speed)
		if err != nil {
			return nil, errors.Wrap(err, "fabric ports")
		}
		spinePorts[j] = ports
	}

	links := make([]LinkRecord, 0, len(leaves)*uplinks+len(loopbacks))
	for j, spine := range spines {
		for i, leaf := range leaves {
			group := fabricConnectionName(spine.ID, leaf.ID)
			for u := 0; u < linksPerSpine; u++ {
				links = append(links, LinkRecord{
					Kind:    LinkKindFabric,
					A:       Endpoint{DeviceID: spine.ID, PortID: spinePorts[j][i*linksPerSpine+u]},
					B:       Endpoint{DeviceID: leaf.ID, PortID: leafPorts[i][j*linksPerSpine+u]},
					GroupID: group,
					Speed:   speed,
				})
			}
		}
	}
	return append(links, loopbacks...), nil
}

// connect cables the spines and leaves of the graph.
func (r *fabric) connect() error {
	spines := r.switchesByRole(RoleSpine)
	leaves := r.switchesByRole(RoleLeaf)

	links, err := GenerateFabricLinks(leaves, spines, r.req)
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := r.addLink(l); err != nil {
			return err
		}
	}
	r.log.Debug("fabric connected", "spines", len(spines), "leaves", len(leaves), "links", len(links))
	return nil
}

// attachServers plans the server attachments and cables them in the graph.
func (r *fabric) attachServers() error {
	leaves := r.switchesByRole(RoleLeaf)

	servers, links, err := PlanServers(r.req.ServerCount, leaves, r.req)
	if err != nil {
		return err
	}
	r.servers = servers
	for _, l := range links {
		if err := r.addLink(l); err != nil {
			return err
		}
	}
	r.log.Debug("servers attached", "servers", len(servers), "links", len(links),
		"mode", string(r.req.ServerRedundancyMode))
	return nil
}

// switchesByRole selects the switch nodes of a role from the graph, ordered by
// their index within the role.
func (r *fabric) switchesByRole(role Role) []*SwitchInstance {
	selector := labels.NewSelector()
	req, _ := labels.NewRequirement(KeyRole, selection.Equals, []string{string(role)})
	selector = selector.Add(*req)

	nodes := r.nodesByLabel(selector)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].GetIndex() < nodes[j].GetIndex() })

	switches := make([]*SwitchInstance, 0, len(nodes))
	for _, n := range nodes {
		switches = append(switches, r.switches[n.String()])
	}
	return switches
}
