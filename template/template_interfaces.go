package template

import (
	"fmt"
	"net/netip"
	"slices"
	"sort"

	"go4.org/netipx"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

const (
	minVLAN = 1
	maxVLAN = 4094
	// maxESLAGLeaves is the largest number of leaves one ESLAG bundle can span;
	// more connections are spread over the same leaves.
	maxESLAGLeaves = 4
)

func ValidConnectionsPerServer(k int) bool {
	return slices.Contains(ConnectionsPerServer, k)
}

func (m RedundancyMode) Valid() bool {
	return slices.Contains(RedundancyModes, m)
}

func (m RedundancyMode) Bundled() bool {
	return m == RedundancyModeLAG || m == RedundancyModeMCLAG || m == RedundancyModeESLAG
}

// ConnectionType is the relation name used for server connections of the mode.
func (m RedundancyMode) ConnectionType() string {
	switch m {
	case RedundancyModeUnbundled:
		return "unbundled"
	case RedundancyModeLAG:
		return "bundled"
	case RedundancyModeMCLAG:
		return "mclag"
	case RedundancyModeESLAG:
		return "eslag"
	}
	return string(m)
}

// LeafSpan is the number of distinct leaves one server of the mode attaches
// to, given k connections per server.
func (m RedundancyMode) LeafSpan(k int) int {
	switch m {
	case RedundancyModeMCLAG:
		return 2
	case RedundancyModeESLAG:
		if k > maxESLAGLeaves {
			return maxESLAGLeaves
		}
		return k
	}
	return 1
}

// LinksPerSpine is the number of links between every leaf and every spine, or
// zero if the uplinks cannot be spread evenly.
func (x *FabricRequest) LinksPerSpine() int {
	if x.Spine.Count < 1 || x.Leaf.FabricPortsPerLeaf%x.Spine.Count != 0 {
		return 0
	}
	return x.Leaf.FabricPortsPerLeaf / x.Spine.Count
}

// CheckTemplate validates the parts of the request that do not depend on the
// switch catalog: enumerations, namespaces and addressing pools.
func (x *FabricRequest) CheckTemplate(fldPath *field.Path) field.ErrorList {
	allErrs := field.ErrorList{}

	if x.Name != "" {
		for _, msg := range validation.IsDNS1123Label(x.Name) {
			allErrs = append(allErrs, field.Invalid(fldPath.Child("name"), x.Name, msg))
		}
	}
	if x.Spine.Model == "" {
		allErrs = append(allErrs, field.Required(fldPath.Child("spine", "model"), ""))
	}
	if x.Leaf.Model == "" {
		allErrs = append(allErrs, field.Required(fldPath.Child("leaf", "model"), ""))
	}
	if x.ServerCount < 0 {
		allErrs = append(allErrs, field.Invalid(fldPath.Child("serverCount"), x.ServerCount, "must be non-negative"))
	}
	if x.Leaf.TotalServerPorts < 0 {
		allErrs = append(allErrs, field.Invalid(fldPath.Child("leaf", "totalServerPorts"), x.Leaf.TotalServerPorts, "must be non-negative"))
	}
	if x.ServerRedundancyMode != "" && !x.ServerRedundancyMode.Valid() {
		allErrs = append(allErrs, field.NotSupported(fldPath.Child("serverRedundancyMode"), x.ServerRedundancyMode, RedundancyModes))
	}
	if x.MCLAGPairing != "" && x.MCLAGPairing != MCLAGPairingRotating && x.MCLAGPairing != MCLAGPairingFixed {
		allErrs = append(allErrs, field.NotSupported(fldPath.Child("mclagPairing"), x.MCLAGPairing,
			[]MCLAGPairing{MCLAGPairingRotating, MCLAGPairingFixed}))
	}

	if x.VLANNamespace != nil {
		allErrs = append(allErrs, x.VLANNamespace.check(fldPath.Child("vlanNamespace"))...)
	}
	allErrs = append(allErrs, x.checkSubnets(fldPath)...)

	for name := range x.Serials {
		if name == "" {
			allErrs = append(allErrs, field.Invalid(fldPath.Child("serials"), name, "switch name must not be empty"))
		}
	}
	return allErrs
}

func (ns *VLANNamespaceTemplate) check(fldPath *field.Path) field.ErrorList {
	allErrs := field.ErrorList{}
	if ns.Name != "" {
		for _, msg := range validation.IsDNS1123Label(ns.Name) {
			allErrs = append(allErrs, field.Invalid(fldPath.Child("name"), ns.Name, msg))
		}
	}
	ranges := make([]VLANRange, 0, len(ns.Ranges))
	for i, r := range ns.Ranges {
		p := fldPath.Child("ranges").Index(i)
		if r.From < minVLAN || r.To > maxVLAN {
			allErrs = append(allErrs, field.Invalid(p, fmt.Sprintf("%d-%d", r.From, r.To),
				fmt.Sprintf("must be within %d-%d", minVLAN, maxVLAN)))
			continue
		}
		if r.From > r.To {
			allErrs = append(allErrs, field.Invalid(p, fmt.Sprintf("%d-%d", r.From, r.To), "from must not be greater than to"))
			continue
		}
		ranges = append(ranges, r)
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].From < ranges[j].From })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].From <= ranges[i-1].To {
			allErrs = append(allErrs, field.Invalid(fldPath.Child("ranges"),
				fmt.Sprintf("%d-%d", ranges[i].From, ranges[i].To),
				fmt.Sprintf("overlaps with %d-%d", ranges[i-1].From, ranges[i-1].To)))
		}
	}
	return allErrs
}

// checkSubnets parses every IPv4 pool of the request and rejects overlaps
// between them, including the protocol and VTEP pools.
func (x *FabricRequest) checkSubnets(fldPath *field.Path) field.ErrorList {
	allErrs := field.ErrorList{}
	var b netipx.IPSetBuilder

	add := func(p *field.Path, subnet string) {
		prefix, err := ParseIPv4Subnet(subnet)
		if err != nil {
			allErrs = append(allErrs, field.Invalid(p, subnet, err.Error()))
			return
		}
		set, err := b.IPSet()
		if err == nil && set.OverlapsPrefix(prefix) {
			allErrs = append(allErrs, field.Invalid(p, subnet, "overlaps with another subnet of the fabric"))
			return
		}
		b.AddPrefix(prefix)
	}

	names := map[string]bool{}
	for i, ns := range x.IPv4Namespaces {
		p := fldPath.Child("ipv4Namespaces").Index(i)
		for _, msg := range validation.IsDNS1123Label(ns.Name) {
			allErrs = append(allErrs, field.Invalid(p.Child("name"), ns.Name, msg))
		}
		if names[ns.Name] {
			allErrs = append(allErrs, field.Duplicate(p.Child("name"), ns.Name))
		}
		names[ns.Name] = true
		if len(ns.Subnets) == 0 {
			allErrs = append(allErrs, field.Required(p.Child("subnets"), "at least one subnet is required"))
		}
		for j, s := range ns.Subnets {
			add(p.Child("subnets").Index(j), s)
		}
	}
	if x.Addressing != nil {
		p := fldPath.Child("addressing")
		if x.Addressing.ProtocolSubnet != "" {
			add(p.Child("protocolSubnet"), x.Addressing.ProtocolSubnet)
		}
		if x.Addressing.VTEPSubnet != "" {
			add(p.Child("vtepSubnet"), x.Addressing.VTEPSubnet)
		}
		if x.Addressing.SpineASN != 0 && x.Addressing.SpineASN >= x.Addressing.LeafASNStart && x.Addressing.LeafASNStart != 0 {
			allErrs = append(allErrs, field.Invalid(p.Child("leafASNStart"), x.Addressing.LeafASNStart,
				fmt.Sprintf("must be greater than spineASN %d", x.Addressing.SpineASN)))
		}
	}
	return allErrs
}

// ParseIPv4Subnet parses a canonical IPv4 prefix such as 10.10.0.0/16.
func ParseIPv4Subnet(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("must be an IPv4 subnet")
	}
	if p != p.Masked() {
		return netip.Prefix{}, fmt.Errorf("host bits must be zero, did you mean %s", p.Masked())
	}
	return p, nil
}
