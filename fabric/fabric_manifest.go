package fabric

import (
	"fmt"
	"strings"

	"github.com/henderiw/fabricwiring/template"
	"github.com/henderiw/fabricwiring/wiring"
)

const (
	bootMACPrefix = "00:1B:44:11"
	bootMACOctet  = 0x3a
)

// Result is everything a generation run produced.
type Result struct {
	Request *template.FabricRequest
	Spines  []*SwitchInstance
	Leaves  []*SwitchInstance
	Servers []ServerInstance
	Links   []LinkRecord
}

// EmitManifests flattens a result into manifests: namespaces, switches (spines
// first), connections (fabric, loopbacks, then servers) and servers. Links
// sharing a group become one connection.
func EmitManifests(res *Result) []wiring.Object {
	req := res.Request
	ns := req.Name
	objs := make([]wiring.Object, 0)

	if req.VLANNamespace != nil {
		ranges := make([]wiring.VLANRange, 0, len(req.VLANNamespace.Ranges))
		for _, r := range req.VLANNamespace.Ranges {
			ranges = append(ranges, wiring.VLANRange{From: r.From, To: r.To})
		}
		objs = append(objs, wiring.NewVLANNamespace(req.VLANNamespace.Name, ns, ranges))
	}
	for _, ipns := range req.IPv4Namespaces {
		objs = append(objs, wiring.NewIPv4Namespace(ipns.Name, ns, append([]string(nil), ipns.Subnets...)))
	}

	for i, s := range res.Spines {
		objs = append(objs, switchManifest(s, req, i+1))
	}
	for i, s := range res.Leaves {
		objs = append(objs, switchManifest(s, req, len(res.Spines)+i+1))
	}

	for _, kind := range []LinkKind{LinkKindFabric, LinkKindLoopback, LinkKindServer} {
		for _, g := range groupLinks(res.Links, kind) {
			objs = append(objs, wiring.NewConnection(g[0].GroupID, ns, connectionSpec(g)))
		}
	}

	for _, s := range res.Servers {
		objs = append(objs, wiring.NewServer(s.ID, ns, wiring.ServerSpec{
			Description: fmt.Sprintf("%s to %s", s.Mode, strings.Join(s.AttachedLeaves, ", ")),
		}))
	}
	return objs
}

// switchManifest renders one switch; seq is its 1-based position over all
// switches of the fabric.
func switchManifest(s *SwitchInstance, req *template.FabricRequest, seq int) *wiring.Switch {
	role := wiring.SwitchRoleServerLeaf
	if s.Role == RoleSpine {
		role = wiring.SwitchRoleSpine
	}
	spec := wiring.SwitchSpec{
		Role:        role,
		Description: fmt.Sprintf("%s-%d", s.Role, s.Index+1),
		Profile:     s.Model,
		Boot:        wiring.SwitchBoot{Serial: s.Serial},
		ASN:         s.ASN,
		ProtocolIP:  s.ProtocolIP,
		VTEPIP:      s.VTEPIP,
	}
	if req.GenerateBootMAC {
		spec.Boot.MAC = bootMAC(seq)
	}
	spec.PortBreakouts, spec.PortSpeeds = portConfig(s)
	return wiring.NewSwitch(s.ID, req.Name, spec)
}

// bootMAC derives the boot MAC of the seq-th switch. Sequence numbers past 255
// carry into the fifth octet.
func bootMAC(seq int) string {
	return fmt.Sprintf("%s:%02X:%02x", bootMACPrefix, bootMACOctet+seq>>8, seq&0xff)
}

// portConfig lists the committed ports that do not run in their default mode.
func portConfig(s *SwitchInstance) (map[string]string, map[string]string) {
	var breakouts, speeds map[string]string
	for _, a := range s.Assignments {
		p, ok := s.Profile.Port(a.PhysicalPortID)
		if !ok {
			continue
		}
		switch {
		case a.BreakoutMode != "":
			if a.BreakoutMode != p.DefaultBreakout {
				if breakouts == nil {
					breakouts = map[string]string{}
				}
				breakouts[a.PhysicalPortID] = a.BreakoutMode
			}
		case len(p.BreakoutModes) == 0 && a.Speed != p.BaseSpeed:
			if speeds == nil {
				speeds = map[string]string{}
			}
			speeds[a.PhysicalPortID] = a.Speed.String()
		}
	}
	return breakouts, speeds
}

// groupLinks returns the links of one kind grouped by GroupID, in order of
// first appearance.
func groupLinks(links []LinkRecord, kind LinkKind) [][]LinkRecord {
	order := make([]string, 0)
	groups := map[string][]LinkRecord{}
	for _, l := range links {
		if l.Kind != kind {
			continue
		}
		if _, ok := groups[l.GroupID]; !ok {
			order = append(order, l.GroupID)
		}
		groups[l.GroupID] = append(groups[l.GroupID], l)
	}
	out := make([][]LinkRecord, 0, len(order))
	for _, id := range order {
		out = append(out, groups[id])
	}
	return out
}

func port(e Endpoint) wiring.BasePortName {
	return wiring.BasePortName{Port: wiring.PortName(e.DeviceID, e.PortID)}
}

func connectionSpec(group []LinkRecord) wiring.ConnectionSpec {
	first := group[0]
	switch first.Kind {
	case LinkKindFabric:
		c := &wiring.ConnFabric{}
		for _, l := range group {
			c.Links = append(c.Links, wiring.FabricLink{Spine: port(l.A), Leaf: port(l.B)})
		}
		return wiring.ConnectionSpec{Fabric: c}
	case LinkKindLoopback:
		c := &wiring.ConnVPCLoopback{}
		for _, l := range group {
			c.Links = append(c.Links, wiring.SwitchToSwitchLink{Switch1: port(l.A), Switch2: port(l.B)})
		}
		return wiring.ConnectionSpec{VPCLoopback: c}
	}

	if first.Mode == template.RedundancyModeUnbundled {
		return wiring.ConnectionSpec{Unbundled: &wiring.ConnUnbundled{
			Link: wiring.ServerToSwitchLink{Server: port(first.A), Switch: port(first.B)},
		}}
	}
	c := &wiring.ConnBundled{}
	for _, l := range group {
		c.Links = append(c.Links, wiring.ServerToSwitchLink{Server: port(l.A), Switch: port(l.B)})
	}
	switch first.Mode {
	case template.RedundancyModeMCLAG:
		return wiring.ConnectionSpec{MCLAG: c}
	case template.RedundancyModeESLAG:
		return wiring.ConnectionSpec{ESLAG: c}
	}
	return wiring.ConnectionSpec{Bundled: c}
}
