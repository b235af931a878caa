package template

const (
	DefaultName           = "default"
	DefaultVLANFrom       = 1000
	DefaultVLANTo         = 2999
	DefaultIPv4Subnet     = "10.10.0.0/16"
	DefaultSpineASN       = 65100
	DefaultLeafASNStart   = 65101
	DefaultProtocolSubnet = "172.30.8.0/22"
	DefaultVTEPSubnet     = "172.30.12.0/22"
)

// WithDefaults returns a copy of the request with every optional field that is
// not set filled in. Speeds depend on the switch profiles and are resolved by
// the fabric builder.
func (x *FabricRequest) WithDefaults() *FabricRequest {
	r := x.DeepCopy()
	if r.Name == "" {
		r.Name = DefaultName
	}
	if r.ServerRedundancyMode == "" {
		r.ServerRedundancyMode = RedundancyModeUnbundled
	}
	if r.ConnectionsPerServer == 0 {
		r.ConnectionsPerServer = 1
	}
	if r.MCLAGPairing == "" {
		r.MCLAGPairing = MCLAGPairingRotating
	}
	if r.Leaf.TotalServerPorts == 0 {
		r.Leaf.TotalServerPorts = r.ServerCount * r.ConnectionsPerServer
	}
	if r.VLANNamespace == nil {
		r.VLANNamespace = &VLANNamespaceTemplate{}
	}
	if r.VLANNamespace.Name == "" {
		r.VLANNamespace.Name = DefaultName
	}
	if len(r.VLANNamespace.Ranges) == 0 {
		r.VLANNamespace.Ranges = []VLANRange{{From: DefaultVLANFrom, To: DefaultVLANTo}}
	}
	if len(r.IPv4Namespaces) == 0 {
		r.IPv4Namespaces = []IPv4NamespaceTemplate{{Name: DefaultName, Subnets: []string{DefaultIPv4Subnet}}}
	}
	if r.Addressing == nil {
		r.Addressing = &AddressingTemplate{}
	}
	if r.Addressing.SpineASN == 0 {
		r.Addressing.SpineASN = DefaultSpineASN
	}
	if r.Addressing.LeafASNStart == 0 {
		r.Addressing.LeafASNStart = DefaultLeafASNStart
	}
	if r.Addressing.ProtocolSubnet == "" {
		r.Addressing.ProtocolSubnet = DefaultProtocolSubnet
	}
	if r.Addressing.VTEPSubnet == "" {
		r.Addressing.VTEPSubnet = DefaultVTEPSubnet
	}
	return r
}

func (x *FabricRequest) DeepCopy() *FabricRequest {
	if x == nil {
		return nil
	}
	out := *x
	if x.VLANNamespace != nil {
		ns := *x.VLANNamespace
		ns.Ranges = append([]VLANRange(nil), x.VLANNamespace.Ranges...)
		out.VLANNamespace = &ns
	}
	if x.IPv4Namespaces != nil {
		out.IPv4Namespaces = make([]IPv4NamespaceTemplate, len(x.IPv4Namespaces))
		for i, ns := range x.IPv4Namespaces {
			out.IPv4Namespaces[i] = IPv4NamespaceTemplate{
				Name:    ns.Name,
				Subnets: append([]string(nil), ns.Subnets...),
			}
		}
	}
	if x.Addressing != nil {
		a := *x.Addressing
		out.Addressing = &a
	}
	if x.Serials != nil {
		out.Serials = make(map[string]string, len(x.Serials))
		for k, v := range x.Serials {
			out.Serials[k] = v
		}
	}
	return &out
}
