package fabric

import (
	"strconv"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/template"
	"gonum.org/v1/gonum/graph/encoding"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	KeyFabric = "fabricwiring.henderiw.io/fabric"
	KeyRole   = "fabricwiring.henderiw.io/role"
	KeyIndex  = "fabricwiring.henderiw.io/index"
	KeyModel  = "fabricwiring.henderiw.io/model"
)

type Role string

const (
	RoleSpine  Role = "spine"
	RoleLeaf   Role = "leaf"
	RoleServer Role = "server"
)

// Level is the tier of the role in the topology view, counted from the top.
func (r Role) Level() int {
	switch r {
	case RoleSpine:
		return 1
	case RoleLeaf:
		return 2
	case RoleServer:
		return 3
	}
	return 0
}

// SwitchInstance is one switch of the generated fabric. UsedPorts only grows
// during a run.
type SwitchInstance struct {
	ID string `json:"id"`
	// Index is the 0-based position of the switch within its role
	Index   int                    `json:"index"`
	Model   string                 `json:"model"`
	Role    Role                   `json:"role"`
	Serial  string                 `json:"serial,omitempty"`
	Profile *catalog.SwitchProfile `json:"-"`

	UsedPorts   sets.Set[string] `json:"-"`
	Assignments []PortAssignment `json:"assignments,omitempty"`

	ASN        uint32 `json:"asn,omitempty"`
	ProtocolIP string `json:"protocolIP,omitempty"`
	VTEPIP     string `json:"vtepIP,omitempty"`
}

func NewSwitchInstance(id string, index int, role Role, profile *catalog.SwitchProfile) *SwitchInstance {
	return &SwitchInstance{
		ID:        id,
		Index:     index,
		Model:     profile.Model,
		Role:      role,
		Profile:   profile,
		UsedPorts: sets.New[string](),
	}
}

// ServerInstance is one server and the leaves it is cabled to.
type ServerInstance struct {
	ID             string                  `json:"id"`
	Index          int                     `json:"index"`
	Mode           template.RedundancyMode `json:"mode"`
	AttachedLeaves []string                `json:"attachedLeaves"`
	InterfaceNames []string                `json:"interfaceNames"`
	// Connection is the name of the connection grouping the server links
	Connection string `json:"connection"`
}

type Node interface {
	ID() int64
	String() string
	DOTID() string
	Attributes() []encoding.Attribute

	GetRole() Role
	GetIndex() int
	GetModel() string
	GetLabels() labels.Set
}

type nodeInfo struct {
	graphIndex int64
	fabric     string
	name       string
	role       Role
	index      int
	model      string
}

func NewNode(ni *nodeInfo) Node {
	return &node{
		graphIndex: ni.graphIndex,
		name:       ni.name,
		role:       ni.role,
		index:      ni.index,
		model:      ni.model,
		labels:     ni.buildLabels(),
	}
}

type node struct {
	graphIndex int64
	name       string
	role       Role
	index      int
	model      string
	labels     labels.Set
}

func (n *node) ID() int64             { return n.graphIndex }
func (n *node) String() string        { return n.name }
func (n *node) DOTID() string         { return n.name }
func (n *node) GetRole() Role         { return n.role }
func (n *node) GetIndex() int         { return n.index }
func (n *node) GetModel() string      { return n.model }
func (n *node) GetLabels() labels.Set { return n.labels }

// Attributes implements the encoding.Attributer interface.
func (n *node) Attributes() []encoding.Attribute {
	shape := "box"
	if n.role == RoleServer {
		shape = "ellipse"
	}
	attrs := []encoding.Attribute{{Key: "shape", Value: shape}}
	if n.model != "" {
		attrs = append(attrs, encoding.Attribute{Key: "tooltip", Value: n.model})
	}
	return attrs
}

func (ni *nodeInfo) buildLabels() labels.Set {
	l := labels.Set{
		KeyFabric: ni.fabric,
		KeyRole:   string(ni.role),
		KeyIndex:  strconv.Itoa(ni.index),
	}
	if ni.model != "" {
		l[KeyModel] = ni.model
	}
	return l
}
