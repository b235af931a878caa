package fabric

// SwitchSummary is the per-switch port usage of a generated fabric.
type SwitchSummary struct {
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	Model       string `json:"model"`
	FabricLinks int    `json:"fabricLinks"`
	ServerLinks int    `json:"serverLinks"`
	// PortsUsed counts committed physical ports, loopback ports included
	PortsUsed  int    `json:"portsUsed"`
	PortsTotal int    `json:"portsTotal"`
	ASN        uint32 `json:"asn,omitempty"`
	ProtocolIP string `json:"protocolIP,omitempty"`
	VTEPIP     string `json:"vtepIP,omitempty"`
}

func (r *fabric) Summary() []SwitchSummary {
	fabricLinks := map[string]int{}
	serverLinks := map[string]int{}
	for _, l := range r.links {
		switch l.Kind {
		case LinkKindFabric:
			fabricLinks[l.A.DeviceID]++
			fabricLinks[l.B.DeviceID]++
		case LinkKindServer:
			serverLinks[l.B.DeviceID]++
		}
	}

	summary := make([]SwitchSummary, 0, len(r.spines)+len(r.leaves))
	for _, tier := range [][]*SwitchInstance{r.spines, r.leaves} {
		for _, s := range tier {
			summary = append(summary, SwitchSummary{
				Name:        s.ID,
				Role:        s.Role,
				Model:       s.Model,
				FabricLinks: fabricLinks[s.ID],
				ServerLinks: serverLinks[s.ID],
				PortsUsed:   s.UsedPorts.Len(),
				PortsTotal:  len(s.Profile.Ports),
				ASN:         s.ASN,
				ProtocolIP:  s.ProtocolIP,
				VTEPIP:      s.VTEPIP,
			})
		}
	}
	return summary
}
