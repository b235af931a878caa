package template

import (
	"github.com/henderiw/fabricwiring/catalog"
)

type RedundancyMode string

const (
	RedundancyModeUnbundled RedundancyMode = "unbundled-single-homed"
	RedundancyModeLAG       RedundancyMode = "bundled-lag-single-homed"
	RedundancyModeMCLAG     RedundancyMode = "bundled-mclag"
	RedundancyModeESLAG     RedundancyMode = "bundled-eslag"
)

var RedundancyModes = []RedundancyMode{
	RedundancyModeUnbundled,
	RedundancyModeLAG,
	RedundancyModeMCLAG,
	RedundancyModeESLAG,
}

// MCLAGPairing selects how the two leaves of an MCLAG server are chosen.
type MCLAGPairing string

const (
	// MCLAGPairingRotating pairs consecutive leaves (n, n+1) with a start that
	// rotates per server.
	MCLAGPairingRotating MCLAGPairing = "rotating"
	// MCLAGPairingFixed pairs leaves as (0,1), (2,3), ...
	MCLAGPairingFixed MCLAGPairing = "fixed"
)

// ConnectionsPerServer lists the supported number of links per server.
var ConnectionsPerServer = []int{1, 2, 4, 8}

// FabricRequest is the input of a generation run: the shape of the fabric and
// how servers attach to it.
type FabricRequest struct {
	// Name of the fabric, used as the namespace of the generated objects
	Name string `json:"name,omitempty"`

	Spine TierTemplate `json:"spine"`
	Leaf  LeafTemplate `json:"leaf"`

	// FabricSpeed of every spine-leaf link, defaults to the leaf's fabric port speed
	FabricSpeed catalog.Speed `json:"fabricSpeed,omitempty"`
	// ServerSpeed of every server link, defaults to the leaf's server port speed
	ServerSpeed catalog.Speed `json:"serverSpeed,omitempty"`

	ServerCount          int            `json:"serverCount,omitempty"`
	ServerRedundancyMode RedundancyMode `json:"serverRedundancyMode,omitempty"`
	ConnectionsPerServer int            `json:"connectionsPerServer,omitempty"`
	MCLAGPairing         MCLAGPairing   `json:"mclagPairing,omitempty"`

	VLANNamespace  *VLANNamespaceTemplate  `json:"vlanNamespace,omitempty"`
	IPv4Namespaces []IPv4NamespaceTemplate `json:"ipv4Namespaces,omitempty"`
	Addressing     *AddressingTemplate     `json:"addressing,omitempty"`

	// Serials maps switch names to serial numbers; values are passed through
	Serials         map[string]string `json:"serials,omitempty"`
	GenerateBootMAC bool              `json:"generateBootMAC,omitempty"`
}

type TierTemplate struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

type LeafTemplate struct {
	Model string `json:"model"`
	Count int    `json:"count"`
	// FabricPortsPerLeaf is the number of uplinks of every leaf, spread evenly
	// over the spines
	FabricPortsPerLeaf int `json:"fabricPortsPerLeaf"`
	// TotalServerPorts is the server-facing port demand of the fabric; defaults
	// to serverCount * connectionsPerServer
	TotalServerPorts int `json:"totalServerPorts,omitempty"`
}

type VLANRange struct {
	From uint16 `json:"from"`
	To   uint16 `json:"to"`
}

type VLANNamespaceTemplate struct {
	Name   string      `json:"name,omitempty"`
	Ranges []VLANRange `json:"ranges,omitempty"`
}

type IPv4NamespaceTemplate struct {
	Name    string   `json:"name"`
	Subnets []string `json:"subnets"`
}

// AddressingTemplate drives the ASN and loopback address bookkeeping of the
// switches.
type AddressingTemplate struct {
	SpineASN       uint32 `json:"spineASN,omitempty"`
	LeafASNStart   uint32 `json:"leafASNStart,omitempty"`
	ProtocolSubnet string `json:"protocolSubnet,omitempty"`
	VTEPSubnet     string `json:"vtepSubnet,omitempty"`
}
