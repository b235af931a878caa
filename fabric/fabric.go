package fabric

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/template"
	"github.com/henderiw/fabricwiring/wiring"
	"github.com/pkg/errors"
	"github.com/yndd/ndd-runtime/pkg/logging"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"
	"k8s.io/apimachinery/pkg/labels"
)

type Fabric interface {
	GetNodes() []Node
	GetLinks() []Link
	GetRequest() *template.FabricRequest
	GetSpines() []*SwitchInstance
	GetLeaves() []*SwitchInstance
	GetServers() []ServerInstance
	GetLinkRecords() []LinkRecord
	GetResult() *Result
	Manifests() []wiring.Object
	Summary() []SwitchSummary
	PrintGraph(w io.Writer) error
	GenerateJSON() ([]byte, error)
}

type Config struct {
	Request *template.FabricRequest
	Catalog *catalog.Catalog
	Log     logging.Logger
}

type fabric struct {
	graph *multi.UndirectedGraph
	cfg   *Config
	log   logging.Logger

	req          *template.FabricRequest
	spineProfile *catalog.SwitchProfile
	leafProfile  *catalog.SwitchProfile

	nodes    map[string]Node
	switches map[string]*SwitchInstance
	spines   []*SwitchInstance
	leaves   []*SwitchInstance
	servers  []ServerInstance
	// links holds every generated link in generation order, loopbacks
	// included; the graph only holds links between two distinct nodes
	links []LinkRecord
}

func New(c *Config) (Fabric, error) {
	if c == nil || c.Catalog == nil {
		return nil, errors.New("cannot build a fabric without a switch catalog")
	}
	log := c.Log
	if log == nil {
		log = logging.NewNopLogger()
	}
	r := &fabric{
		graph:    multi.NewUndirectedGraph(),
		cfg:      c,
		log:      log,
		nodes:    map[string]Node{},
		switches: map[string]*SwitchInstance{},
	}

	// the request is checked as a whole before any port is allocated
	if err := r.validate(); err != nil {
		return nil, err
	}
	if err := r.buildRequest(); err != nil {
		return nil, err
	}
	r.log = r.log.WithValues("fabric", r.req.Name)

	// populateNodes adds the spines, leaves and servers to the graph
	if err := r.populateNodes(); err != nil {
		return nil, err
	}
	// connect cables spines to leaves and adds the leaf loopbacks
	if err := r.connect(); err != nil {
		return nil, err
	}
	// attachServers cables the servers to the leaves
	if err := r.attachServers(); err != nil {
		return nil, err
	}
	if err := assignAddresses(r.spines, r.leaves, r.req.Addressing); err != nil {
		return nil, err
	}
	if err := r.checkConnectivity(); err != nil {
		return nil, err
	}

	r.log.Info("fabric generated",
		"spines", len(r.spines), "leaves", len(r.leaves), "servers", len(r.servers), "links", len(r.links))
	return r, nil
}

func (r *fabric) GetRequest() *template.FabricRequest { return r.req }
func (r *fabric) GetSpines() []*SwitchInstance        { return r.spines }
func (r *fabric) GetLeaves() []*SwitchInstance        { return r.leaves }
func (r *fabric) GetServers() []ServerInstance        { return r.servers }
func (r *fabric) GetLinkRecords() []LinkRecord        { return r.links }

func (r *fabric) GetResult() *Result {
	return &Result{
		Request: r.req,
		Spines:  r.spines,
		Leaves:  r.leaves,
		Servers: r.servers,
		Links:   r.links,
	}
}

func (r *fabric) Manifests() []wiring.Object {
	return EmitManifests(r.GetResult())
}

// GetNodes returns the nodes of the graph ordered by id.
func (r *fabric) GetNodes() []Node {
	nodes := make([]Node, 0)
	it := r.graph.Nodes()
	if it == nil {
		return nodes
	}

	for it.Next() {
		n := it.Node().(Node)
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return nodes
}

// GetLinks returns the lines of the graph ordered by id.
func (r *fabric) GetLinks() []Link {
	links := make([]Link, 0)
	it := r.graph.Edges()
	if it == nil {
		return links
	}

	for it.Next() {
		edge := it.Edge().(multi.Edge)
		for edge.Lines.Next() {
			l := edge.Lines.Line().(Link)
			links = append(links, l)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID() < links[j].ID() })
	return links
}

func (r *fabric) nodesByLabel(selector labels.Selector) (nodes []Node) {
	for _, node := range r.GetNodes() {
		if selector.Matches(node.GetLabels()) {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// addLink records the link and adds it to the graph unless both ends sit on
// the same node.
func (r *fabric) addLink(rec LinkRecord) error {
	r.links = append(r.links, rec)
	if rec.A.DeviceID == rec.B.DeviceID {
		return nil
	}
	from, ok := r.nodes[rec.A.DeviceID]
	if !ok {
		return errors.Errorf("link %s: unknown node %s", rec, rec.A.DeviceID)
	}
	to, ok := r.nodes[rec.B.DeviceID]
	if !ok {
		return errors.Errorf("link %s: unknown node %s", rec, rec.B.DeviceID)
	}
	l := r.graph.NewLine(from, to)
	r.graph.SetLine(NewLink(from, to, l.ID(), rec))
	return nil
}

// checkConnectivity makes sure every node is reachable from every other.
func (r *fabric) checkConnectivity() error {
	if cc := topo.ConnectedComponents(r.graph); len(cc) > 1 {
		return errors.Errorf("fabric graph is split into %d components", len(cc))
	}
	return nil
}

// PrintGraph writes the graph in DOT format, one edge per cable.
func (r *fabric) PrintGraph(w io.Writer) error {
	b, err := dot.MarshalMulti(r.graph, r.req.Name, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot marshal fabric graph")
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

type TopologyJsonNode struct {
	ID    int                   `json:"id"`
	Label string                `json:"label"`
	Level int                   `json:"level"`
	Cid   string                `json:"cid"`
	Data  *TopologyJsonNodedata `json:"data,omitempty"`
}

type TopologyJsonNodedata struct {
	Model      string `json:"model,omitempty"`
	ASN        uint32 `json:"asn,omitempty"`
	ProtocolIP string `json:"protocolIp,omitempty"`
}

type TopologyJsonLink struct {
	From  int    `json:"from"`
	To    int    `json:"to"`
	Label string `json:"label,omitempty"`
}

type TopologyJsonFile struct {
	Nodes []*TopologyJsonNode `json:"nodes,omitempty"`
	Edges []*TopologyJsonLink `json:"edges,omitempty"`
}

// GenerateJSON renders the graph as a nodes/edges document for topology
// viewers.
func (r *fabric) GenerateJSON() ([]byte, error) {
	t := &TopologyJsonFile{
		Nodes: []*TopologyJsonNode{},
		Edges: []*TopologyJsonLink{},
	}

	for _, n := range r.GetNodes() {
		jn := &TopologyJsonNode{
			ID:    int(n.ID()),
			Label: n.String(),
			Level: n.GetRole().Level(),
			Cid:   string(n.GetRole()),
		}
		if s, ok := r.switches[n.String()]; ok {
			jn.Data = &TopologyJsonNodedata{
				Model:      n.GetModel(),
				ASN:        s.ASN,
				ProtocolIP: s.ProtocolIP,
			}
		}
		t.Nodes = append(t.Nodes, jn)
	}

	for _, l := range r.GetLinks() {
		rec := l.GetRecord()
		t.Edges = append(t.Edges, &TopologyJsonLink{
			From:  int(l.From().ID()),
			To:    int(l.To().ID()),
			Label: rec.A.PortID + " - " + rec.B.PortID,
		})
	}

	return json.MarshalIndent(t, "", "\t")
}
