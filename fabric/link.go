package fabric

import (
	"fmt"
	"strings"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/template"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
)

type LinkKind string

const (
	LinkKindFabric   LinkKind = "fabric"
	LinkKindServer   LinkKind = "server"
	LinkKindLoopback LinkKind = "loopback"
)

type Endpoint struct {
	DeviceID string `json:"deviceId"`
	PortID   string `json:"portId"`
}

func (e Endpoint) String() string { return e.DeviceID + "/" + e.PortID }

// LinkRecord is one physical cable. Records sharing a GroupID form one
// connection.
type LinkRecord struct {
	Kind LinkKind `json:"kind"`
	// A is the spine for fabric links and the server for server links
	A       Endpoint                `json:"a"`
	B       Endpoint                `json:"b"`
	GroupID string                  `json:"groupId"`
	Mode    template.RedundancyMode `json:"mode,omitempty"`
	Speed   catalog.Speed           `json:"speed,omitempty"`
}

func (r LinkRecord) String() string {
	return fmt.Sprintf("%s %s <-> %s", r.Kind, r.A, r.B)
}

type Link interface {
	From() graph.Node
	To() graph.Node
	ReversedLine() graph.Line
	ID() int64
	String() string
	Attributes() []encoding.Attribute

	GetRecord() LinkRecord
}

func NewLink(from, to Node, lID int64, r LinkRecord) Link {
	return &link{
		F:      from,
		T:      to,
		UID:    lID,
		record: r,
	}
}

type link struct {
	F, T   graph.Node
	UID    int64
	record LinkRecord
}

func (l *link) From() graph.Node { return l.F }
func (l *link) To() graph.Node   { return l.T }
func (l *link) ReversedLine() graph.Line {
	return &link{F: l.T, T: l.F, UID: l.UID, record: l.record}
}
func (l *link) ID() int64             { return l.UID }
func (l *link) GetRecord() LinkRecord { return l.record }

func (l *link) String() string {
	name := fmt.Sprintf("%s-%s-%s-%s", l.record.A.DeviceID, l.record.A.PortID, l.record.B.DeviceID, l.record.B.PortID)
	return strings.ReplaceAll(name, "/", "-")
}

// Attributes implements the encoding.Attributer interface.
func (l *link) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{
		{Key: "taillabel", Value: l.record.A.PortID},
		{Key: "headlabel", Value: l.record.B.PortID},
	}
	if l.record.Kind == LinkKindServer {
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "dashed"})
	}
	return attrs
}
