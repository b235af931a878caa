// Package wiring holds the manifest types a fabric is rendered into. They
// follow the wiring and vpc API groups of the fabric controller so the output
// can be applied as is.
package wiring

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	Version = "v1beta1"

	WiringGroup = "wiring.githedgehog.com"
	VPCGroup    = "vpc.githedgehog.com"

	VLANNamespaceKind = "VLANNamespace"
	IPv4NamespaceKind = "IPv4Namespace"
	SwitchKind        = "Switch"
	ConnectionKind    = "Connection"
	ServerKind        = "Server"

	AnnotationType = "type.hhfab.githedgehog.com"
)

var (
	WiringGroupVersion = schema.GroupVersion{Group: WiringGroup, Version: Version}
	VPCGroupVersion    = schema.GroupVersion{Group: VPCGroup, Version: Version}
)

// Object is a manifest in the emitted list.
type Object interface {
	metav1.Object
	GetObjectKind() schema.ObjectKind
}

type SwitchRole string

const (
	SwitchRoleSpine      SwitchRole = "spine"
	SwitchRoleServerLeaf SwitchRole = "server-leaf"
)

type VLANRange struct {
	From uint16 `json:"from"`
	To   uint16 `json:"to"`
}

type VLANNamespaceSpec struct {
	Ranges []VLANRange `json:"ranges"`
}

type VLANNamespace struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec VLANNamespaceSpec `json:"spec"`
}

type IPv4NamespaceSpec struct {
	Subnets []string `json:"subnets"`
}

type IPv4Namespace struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec IPv4NamespaceSpec `json:"spec"`
}

type SwitchBoot struct {
	Serial string `json:"serial,omitempty"`
	MAC    string `json:"mac,omitempty"`
}

type SwitchSpec struct {
	Role        SwitchRole `json:"role"`
	Description string     `json:"description,omitempty"`
	Profile     string     `json:"profile"`
	Boot        SwitchBoot `json:"boot,omitempty"`
	// PortBreakouts maps a physical port to a breakout mode other than its default
	PortBreakouts map[string]string `json:"portBreakouts,omitempty"`
	// PortSpeeds maps a physical port to a fixed speed other than its default
	PortSpeeds map[string]string `json:"portSpeeds,omitempty"`
	ASN        uint32            `json:"asn,omitempty"`
	ProtocolIP string            `json:"protocolIP,omitempty"`
	VTEPIP     string            `json:"vtepIP,omitempty"`
}

type Switch struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec SwitchSpec `json:"spec"`
}

type ServerSpec struct {
	Description string `json:"description,omitempty"`
}

type Server struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ServerSpec `json:"spec"`
}

// BasePortName is a port reference of the form <device>/<port>.
type BasePortName struct {
	Port string `json:"port"`
}

type FabricLink struct {
	Spine BasePortName `json:"spine"`
	Leaf  BasePortName `json:"leaf"`
}

type SwitchToSwitchLink struct {
	Switch1 BasePortName `json:"switch1"`
	Switch2 BasePortName `json:"switch2"`
}

type ServerToSwitchLink struct {
	Server BasePortName `json:"server"`
	Switch BasePortName `json:"switch"`
}

type ConnFabric struct {
	Links []FabricLink `json:"links"`
}

type ConnVPCLoopback struct {
	Links []SwitchToSwitchLink `json:"links"`
}

type ConnUnbundled struct {
	Link ServerToSwitchLink `json:"link"`
}

type ConnBundled struct {
	Links []ServerToSwitchLink `json:"links"`
}

// ConnectionSpec carries exactly one of its members.
type ConnectionSpec struct {
	Unbundled   *ConnUnbundled   `json:"unbundled,omitempty"`
	Bundled     *ConnBundled     `json:"bundled,omitempty"`
	MCLAG       *ConnBundled     `json:"mclag,omitempty"`
	ESLAG       *ConnBundled     `json:"eslag,omitempty"`
	Fabric      *ConnFabric      `json:"fabric,omitempty"`
	VPCLoopback *ConnVPCLoopback `json:"vpcLoopback,omitempty"`
}

type Connection struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ConnectionSpec `json:"spec"`
}

// Type returns the name of the connection member that is set.
func (c *ConnectionSpec) Type() string {
	switch {
	case c.Unbundled != nil:
		return "unbundled"
	case c.Bundled != nil:
		return "bundled"
	case c.MCLAG != nil:
		return "mclag"
	case c.ESLAG != nil:
		return "eslag"
	case c.Fabric != nil:
		return "fabric"
	case c.VPCLoopback != nil:
		return "vpc-loopback"
	}
	return ""
}

// LinkCount is the number of physical links described by the connection.
func (c *ConnectionSpec) LinkCount() int {
	switch {
	case c.Unbundled != nil:
		return 1
	case c.Bundled != nil:
		return len(c.Bundled.Links)
	case c.MCLAG != nil:
		return len(c.MCLAG.Links)
	case c.ESLAG != nil:
		return len(c.ESLAG.Links)
	case c.Fabric != nil:
		return len(c.Fabric.Links)
	case c.VPCLoopback != nil:
		return len(c.VPCLoopback.Links)
	}
	return 0
}

func PortName(device, port string) string {
	return device + "/" + port
}

func typeMeta(gv schema.GroupVersion, kind string) metav1.TypeMeta {
	return metav1.TypeMeta{APIVersion: gv.String(), Kind: kind}
}

func objectMeta(name, namespace string) metav1.ObjectMeta {
	return metav1.ObjectMeta{Name: name, Namespace: namespace}
}

func NewVLANNamespace(name, namespace string, ranges []VLANRange) *VLANNamespace {
	return &VLANNamespace{
		TypeMeta:   typeMeta(WiringGroupVersion, VLANNamespaceKind),
		ObjectMeta: objectMeta(name, namespace),
		Spec:       VLANNamespaceSpec{Ranges: ranges},
	}
}

func NewIPv4Namespace(name, namespace string, subnets []string) *IPv4Namespace {
	return &IPv4Namespace{
		TypeMeta:   typeMeta(VPCGroupVersion, IPv4NamespaceKind),
		ObjectMeta: objectMeta(name, namespace),
		Spec:       IPv4NamespaceSpec{Subnets: subnets},
	}
}

func NewSwitch(name, namespace string, spec SwitchSpec) *Switch {
	sw := &Switch{
		TypeMeta:   typeMeta(WiringGroupVersion, SwitchKind),
		ObjectMeta: objectMeta(name, namespace),
		Spec:       spec,
	}
	sw.SetAnnotations(map[string]string{AnnotationType: "hw"})
	return sw
}

func NewConnection(name, namespace string, spec ConnectionSpec) *Connection {
	return &Connection{
		TypeMeta:   typeMeta(WiringGroupVersion, ConnectionKind),
		ObjectMeta: objectMeta(name, namespace),
		Spec:       spec,
	}
}

func NewServer(name, namespace string, spec ServerSpec) *Server {
	return &Server{
		TypeMeta:   typeMeta(WiringGroupVersion, ServerKind),
		ObjectMeta: objectMeta(name, namespace),
		Spec:       spec,
	}
}
