package fabric

import (
	"fmt"
	"strings"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/template"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

func ServerName(index int) string {
	return fmt.Sprintf("server-%d", index+1)
}

// serverInterfaceName names the n-th NIC port of a server: two ports per
// interface group.
func serverInterfaceName(n int) string {
	return fmt.Sprintf("enp%ds%d", n/2, n%2+1)
}

// leafIndexes returns for every link of the server the index of the leaf it
// lands on. The attachment start rotates by one leaf per server.
func leafIndexes(req *template.FabricRequest, serverIndex, leafCount int) ([]int, error) {
	k := req.ConnectionsPerServer
	mode := req.ServerRedundancyMode
	if !template.ValidConnectionsPerServer(k) {
		return nil, errors.Wrapf(ErrInvalidConnectionCount, "%d, must be one of %v", k, template.ConnectionsPerServer)
	}
	if span := mode.LeafSpan(k); leafCount < span {
		return nil, errors.Wrapf(ErrInsufficientLeavesForRedundancy,
			"%s with %d connections per server needs %d leaves, got %d", mode, k, span, leafCount)
	}

	start := serverIndex % leafCount
	idx := make([]int, k)
	switch mode {
	case template.RedundancyModeUnbundled:
		if k != 1 {
			return nil, errors.Wrapf(ErrInvalidConnectionCount, "%s supports exactly 1 connection per server, got %d", mode, k)
		}
		idx[0] = start
	case template.RedundancyModeLAG:
		for n := range idx {
			idx[n] = start
		}
	case template.RedundancyModeMCLAG:
		if k < 2 {
			return nil, errors.Wrapf(ErrInvalidConnectionCount, "%s needs at least 2 connections per server, got %d", mode, k)
		}
		if leafCount%2 != 0 {
			return nil, errors.Wrapf(ErrInsufficientLeavesForRedundancy, "%s needs an even number of leaves, got %d", mode, leafCount)
		}
		first := serverIndex % (leafCount - 1)
		if req.MCLAGPairing == template.MCLAGPairingFixed {
			first = 2 * (serverIndex % (leafCount / 2))
		}
		for n := range idx {
			idx[n] = first + n%2
		}
	case template.RedundancyModeESLAG:
		if k < 2 {
			return nil, errors.Wrapf(ErrInvalidConnectionCount, "%s needs at least 2 connections per server, got %d", mode, k)
		}
		perLeaf := k / mode.LeafSpan(k)
		for n := range idx {
			idx[n] = (start + n/perLeaf) % leafCount
		}
	default:
		return nil, errors.Wrapf(ErrInvalidRequest, "unsupported redundancy mode %q", mode)
	}
	return idx, nil
}

// leafDemand returns the number of server links every leaf terminates.
func leafDemand(req *template.FabricRequest, serverCount, leafCount int) ([]int, error) {
	demand := make([]int, leafCount)
	for s := 0; s < serverCount; s++ {
		idx, err := leafIndexes(req, s, leafCount)
		if err != nil {
			return nil, err
		}
		for _, l := range idx {
			demand[l]++
		}
	}
	return demand, nil
}

// PlanServers attaches serverCount servers to the leaves according to the
// redundancy mode of the request. Leaf ports are allocated per leaf at the
// server speed; if any leaf runs out of ports no leaf keeps an allocation.
func PlanServers(serverCount int, leaves []*SwitchInstance, req *template.FabricRequest) ([]ServerInstance, []LinkRecord, error) {
	if serverCount <= 0 {
		return nil, nil, nil
	}
	if len(leaves) == 0 {
		return nil, nil, errors.Wrap(ErrInsufficientLeavesForRedundancy, "no leaves to attach servers to")
	}
	demand, err := leafDemand(req, serverCount, len(leaves))
	if err != nil {
		return nil, nil, err
	}
	speed := req.ServerSpeed
	if speed == 0 {
		speed = leaves[0].Profile.DefaultSpeedForRole(catalog.PortRoleServer)
	}

	queues, err := allocateServerPorts(leaves, demand, speed)
	if err != nil {
		return nil, nil, err
	}

	servers := make([]ServerInstance, 0, serverCount)
	links := make([]LinkRecord, 0, serverCount*req.ConnectionsPerServer)
	for s := 0; s < serverCount; s++ {
		idx, err := leafIndexes(req, s, len(leaves))
		if err != nil {
			return nil, nil, err
		}
		name := ServerName(s)
		attached := orderedLeaves(idx, leaves)

		server := ServerInstance{
			ID:             name,
			Index:          s,
			Mode:           req.ServerRedundancyMode,
			AttachedLeaves: attached,
			Connection:     serverConnectionName(name, req.ServerRedundancyMode, attached),
		}
		for n, l := range idx {
			iface := serverInterfaceName(n)
			port := queues[l][0]
			queues[l] = queues[l][1:]
			server.InterfaceNames = append(server.InterfaceNames, iface)
			links = append(links, LinkRecord{
				Kind:    LinkKindServer,
				A:       Endpoint{DeviceID: name, PortID: iface},
				B:       Endpoint{DeviceID: leaves[l].ID, PortID: port},
				GroupID: server.Connection,
				Mode:    req.ServerRedundancyMode,
				Speed:   speed,
			})
		}
		servers = append(servers, server)
	}
	return servers, links, nil
}

// allocateServerPorts takes the server ports of every leaf in one go and rolls
// all leaves back when one of them falls short.
func allocateServerPorts(leaves []*SwitchInstance, demand []int, speed catalog.Speed) ([][]string, error) {
	saved := saveSwitches(leaves)
	queues := make([][]string, len(leaves))
	for i, l := range leaves {
		if demand[i] == 0 {
			continue
		}
		ports, err := l.allocate(l.Profile.PortsForRole(catalog.PortRoleServer), demand[i], speed)
		if err != nil {
			saved.restore()
			return nil, errors.Wrap(err, "server ports")
		}
		queues[i] = ports
	}
	return queues, nil
}

// orderedLeaves lists the distinct leaves of idx in first-use order.
func orderedLeaves(idx []int, leaves []*SwitchInstance) []string {
	seen := sets.New[int]()
	ids := make([]string, 0, len(idx))
	for _, l := range idx {
		if seen.Has(l) {
			continue
		}
		seen.Insert(l)
		ids = append(ids, leaves[l].ID)
	}
	return ids
}

func serverConnectionName(server string, mode template.RedundancyMode, leaves []string) string {
	return server + "--" + mode.ConnectionType() + "--" + strings.Join(leaves, "--")
}
