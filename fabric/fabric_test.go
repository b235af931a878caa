package fabric

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/template"
	"github.com/henderiw/fabricwiring/wiring"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/yndd/ndd-runtime/pkg/logging"
)

func switchesOf(objs []wiring.Object) map[string]*wiring.Switch {
	out := map[string]*wiring.Switch{}
	for _, o := range objs {
		if s, ok := o.(*wiring.Switch); ok {
			out[s.Name] = s
		}
	}
	return out
}

func connectionsOf(objs []wiring.Object) []*wiring.Connection {
	out := []*wiring.Connection{}
	for _, o := range objs {
		if c, ok := o.(*wiring.Connection); ok {
			out = append(out, c)
		}
	}
	return out
}

// expectDisjointPorts checks that no physical port is committed twice and no
// logical port carries two cables on any switch.
func expectDisjointPorts(f Fabric) {
	switches := append(append([]*SwitchInstance{}, f.GetSpines()...), f.GetLeaves()...)
	for _, s := range switches {
		physical := map[string]bool{}
		for _, a := range s.Assignments {
			Expect(physical).NotTo(HaveKey(a.PhysicalPortID), "%s port %s", s.ID, a.PhysicalPortID)
			physical[a.PhysicalPortID] = true
		}
		Expect(physical).To(HaveLen(s.UsedPorts.Len()), s.ID)
	}

	cabled := map[string]bool{}
	for _, l := range f.GetLinkRecords() {
		for _, e := range []Endpoint{l.A, l.B} {
			Expect(cabled).NotTo(HaveKey(e.String()), "port %s cabled twice", e)
			cabled[e.String()] = true
		}
	}
}

var _ = Describe("Fabric", func() {
	var (
		c   *catalog.Catalog
		req *template.FabricRequest
	)

	build := func() Fabric {
		f, err := New(&Config{Request: req, Catalog: c, Log: logging.NewLogrLogger(GinkgoLogr)})
		Expect(err).NotTo(HaveOccurred())
		return f
	}

	BeforeEach(func() {
		var err error
		c, err = catalog.Bundled()
		Expect(err).NotTo(HaveOccurred())
		req = &template.FabricRequest{
			Name:        "lab",
			Spine:       template.TierTemplate{Model: "dell-s5232f-on", Count: 2},
			Leaf:        template.LeafTemplate{Model: "dell-s5248f-on", Count: 4, FabricPortsPerLeaf: 4},
			ServerCount: 8,
		}
	})

	Context("with two spines, four leaves and unbundled servers", func() {
		It("should emit every object in order", func() {
			objs := build().Manifests()
			Expect(objs).To(HaveLen(36))
			Expect(wiring.CountByKind(objs)).To(Equal(map[string]int{
				wiring.VLANNamespaceKind: 1,
				wiring.IPv4NamespaceKind: 1,
				wiring.SwitchKind:        6,
				wiring.ConnectionKind:    20,
				wiring.ServerKind:        8,
			}))

			names := make([]string, 0, len(objs))
			for _, o := range objs {
				names = append(names, o.GetName())
			}
			Expect(names[:8]).To(Equal([]string{
				"default", "default",
				"s5232-01", "s5232-02", "s5248-01", "s5248-02", "s5248-03", "s5248-04",
			}))
			Expect(names[8]).To(Equal("s5232-01--fabric--s5248-01"))
			Expect(names[16]).To(Equal("s5248-01--vpc-loopback"))
			Expect(names[20]).To(Equal("server-1--unbundled--s5248-01"))
			Expect(names[28]).To(Equal("server-1"))
			for _, o := range objs {
				Expect(o.GetNamespace()).To(Equal("lab"))
			}
		})

		It("should cable the fabric connections link by link", func() {
			conns := connectionsOf(build().Manifests())
			Expect(conns[0].Spec.Fabric).NotTo(BeNil())
			Expect(conns[0].Spec.Fabric.Links).To(Equal([]wiring.FabricLink{
				{Spine: wiring.BasePortName{Port: "s5232-01/E1/1"}, Leaf: wiring.BasePortName{Port: "s5248-01/E1/49"}},
				{Spine: wiring.BasePortName{Port: "s5232-01/E1/2"}, Leaf: wiring.BasePortName{Port: "s5248-01/E1/50"}},
			}))
			Expect(conns[4].Name).To(Equal("s5232-02--fabric--s5248-01"))
			Expect(conns[4].Spec.Fabric.Links[0].Leaf.Port).To(Equal("s5248-01/E1/51"))

			Expect(conns[8].Spec.VPCLoopback.Links).To(Equal([]wiring.SwitchToSwitchLink{
				{Switch1: wiring.BasePortName{Port: "s5248-01/E1/47"}, Switch2: wiring.BasePortName{Port: "s5248-01/E1/48"}},
			}))

			Expect(conns[12].Spec.Unbundled).NotTo(BeNil())
			Expect(conns[12].Spec.Unbundled.Link.Server.Port).To(Equal("server-1/enp0s1"))
			Expect(conns[12].Spec.Unbundled.Link.Switch.Port).To(Equal("s5248-01/E1/1"))
			Expect(conns[16].Spec.Unbundled.Link.Switch.Port).To(Equal("s5248-01/E1/2"))
		})

		It("should not emit port configuration for ports in their default mode", func() {
			for _, s := range switchesOf(build().Manifests()) {
				Expect(s.Spec.PortBreakouts).To(BeEmpty(), s.Name)
				Expect(s.Spec.PortSpeeds).To(BeEmpty(), s.Name)
			}
		})

		It("should assign ASNs and addresses", func() {
			sw := switchesOf(build().Manifests())
			Expect(sw["s5232-01"].Spec.Role).To(Equal(wiring.SwitchRoleSpine))
			Expect(sw["s5232-01"].Spec.ASN).To(Equal(uint32(65100)))
			Expect(sw["s5232-02"].Spec.ASN).To(Equal(uint32(65100)))
			Expect(sw["s5232-02"].Spec.ProtocolIP).To(Equal("172.30.8.2/32"))
			Expect(sw["s5232-02"].Spec.VTEPIP).To(BeEmpty())

			Expect(sw["s5248-01"].Spec.Role).To(Equal(wiring.SwitchRoleServerLeaf))
			Expect(sw["s5248-01"].Spec.ASN).To(Equal(uint32(65101)))
			Expect(sw["s5248-04"].Spec.ASN).To(Equal(uint32(65104)))
			Expect(sw["s5248-01"].Spec.ProtocolIP).To(Equal("172.30.8.3/32"))
			Expect(sw["s5248-04"].Spec.VTEPIP).To(Equal("172.30.12.4/32"))
			Expect(sw["s5248-01"].Annotations).To(HaveKeyWithValue(wiring.AnnotationType, "hw"))
		})

		It("should produce identical output on every run", func() {
			first, err := wiring.Marshal(build().Manifests())
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 3; i++ {
				again, err := wiring.Marshal(build().Manifests())
				Expect(err).NotTo(HaveOccurred())
				Expect(again).To(Equal(first))
			}
			Expect(bytes.Count(first, []byte("\n---\n"))).To(Equal(35))
		})

		It("should keep the caller's request untouched", func() {
			build()
			Expect(req.VLANNamespace).To(BeNil())
			Expect(req.Addressing).To(BeNil())
			Expect(req.ServerRedundancyMode).To(BeEmpty())
		})

		It("should hold every node and cable in the graph", func() {
			f := build()
			Expect(f.GetNodes()).To(HaveLen(14))
			// loopbacks stay out of the graph
			Expect(f.GetLinks()).To(HaveLen(24))
			Expect(f.GetLinkRecords()).To(HaveLen(28))
			Expect(f.GetServers()).To(HaveLen(8))
		})

		It("should render the graph", func() {
			f := build()
			buf := &bytes.Buffer{}
			Expect(f.PrintGraph(buf)).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("graph lab {"))
			Expect(buf.String()).To(ContainSubstring("s5232-01"))
			Expect(buf.String()).To(ContainSubstring("taillabel"))

			b, err := f.GenerateJSON()
			Expect(err).NotTo(HaveOccurred())
			topo := &TopologyJsonFile{}
			Expect(json.Unmarshal(b, topo)).To(Succeed())
			Expect(topo.Nodes).To(HaveLen(14))
			Expect(topo.Edges).To(HaveLen(24))
			for _, n := range topo.Nodes {
				switch n.Cid {
				case string(RoleSpine):
					Expect(n.Level).To(Equal(1))
					Expect(n.Data.ASN).To(Equal(uint32(65100)))
				case string(RoleServer):
					Expect(n.Level).To(Equal(3))
					Expect(n.Data).To(BeNil())
				}
			}
		})

		It("should summarize port usage", func() {
			summary := build().Summary()
			Expect(summary).To(HaveLen(6))
			Expect(summary[0]).To(Equal(SwitchSummary{
				Name: "s5232-01", Role: RoleSpine, Model: "dell-s5232f-on",
				FabricLinks: 8, PortsUsed: 8, PortsTotal: 35,
				ASN: 65100, ProtocolIP: "172.30.8.1/32",
			}))
			Expect(summary[2].Name).To(Equal("s5248-01"))
			Expect(summary[2].FabricLinks).To(Equal(4))
			Expect(summary[2].ServerLinks).To(Equal(2))
			Expect(summary[2].PortsUsed).To(Equal(8))
			Expect(summary[2].PortsTotal).To(Equal(57))
		})
	})

	Context("with serials and boot MACs", func() {
		It("should fill in the boot section", func() {
			req.Serials = map[string]string{"s5232-01": "SN-0001", "s5248-02": "SN-0002", "nope-01": "SN-X"}
			req.GenerateBootMAC = true
			sw := switchesOf(build().Manifests())
			Expect(sw["s5232-01"].Spec.Boot).To(Equal(wiring.SwitchBoot{Serial: "SN-0001", MAC: "00:1B:44:11:3A:01"}))
			Expect(sw["s5248-02"].Spec.Boot).To(Equal(wiring.SwitchBoot{Serial: "SN-0002", MAC: "00:1B:44:11:3A:04"}))
			Expect(sw["s5248-04"].Spec.Boot.Serial).To(BeEmpty())
			Expect(sw["s5248-04"].Spec.Boot.MAC).To(Equal("00:1B:44:11:3A:06"))
		})
	})

	Context("when spines and leaves share a model", func() {
		It("should continue the numbering across the tiers", func() {
			req.Spine.Model = "dell-s5248f-on"
			f := build()
			Expect(f.GetSpines()[1].ID).To(Equal("s5248-02"))
			Expect(f.GetLeaves()[0].ID).To(Equal("s5248-03"))
			Expect(f.GetLeaves()[0].Index).To(Equal(0))
			Expect(f.GetLeaves()[3].ID).To(Equal("s5248-06"))
		})
	})

	Context("with fabric links at 25G", func() {
		It("should break out the fabric ports", func() {
			req.FabricSpeed = catalog.MustParseSpeed("25G")
			req.Leaf.FabricPortsPerLeaf = 8
			sw := switchesOf(build().Manifests())
			Expect(sw["s5248-01"].Spec.PortBreakouts).To(Equal(map[string]string{"E1/49": "4x25G", "E1/50": "4x25G"}))
			Expect(sw["s5232-01"].Spec.PortBreakouts).To(Equal(map[string]string{
				"E1/1": "4x25G", "E1/2": "4x25G", "E1/3": "4x25G", "E1/4": "4x25G",
			}))
		})
	})

	Context("with servers at 10G", func() {
		It("should set the port speed of the server ports", func() {
			req.ServerSpeed = catalog.MustParseSpeed("10G")
			sw := switchesOf(build().Manifests())
			Expect(sw["s5248-01"].Spec.PortSpeeds).To(Equal(map[string]string{"E1/1": "10G", "E1/2": "10G"}))
			Expect(sw["s5248-01"].Spec.PortBreakouts).To(BeEmpty())
		})
	})

	Context("with MCLAG servers", func() {
		BeforeEach(func() {
			req.ServerRedundancyMode = template.RedundancyModeMCLAG
			req.ConnectionsPerServer = 2
			req.ServerCount = 4
		})

		It("should bundle every server across a leaf pair", func() {
			f := build()
			objs := f.Manifests()
			conns := connectionsOf(objs)
			Expect(conns).To(HaveLen(8 + 4 + 4))

			mclag := conns[13]
			Expect(mclag.Name).To(Equal("server-2--mclag--s5248-02--s5248-03"))
			Expect(mclag.Spec.MCLAG).NotTo(BeNil())
			Expect(mclag.Spec.Type()).To(Equal("mclag"))
			Expect(mclag.Spec.LinkCount()).To(Equal(2))
			Expect(mclag.Spec.MCLAG.Links[0].Server.Port).To(Equal("server-2/enp0s1"))
			Expect(mclag.Spec.MCLAG.Links[1].Switch.Port).To(HavePrefix("s5248-03/"))

			Expect(f.GetServers()[1].AttachedLeaves).To(Equal([]string{"s5248-02", "s5248-03"}))
			srv := objs[len(objs)-3].(*wiring.Server)
			Expect(srv.Spec.Description).To(Equal("bundled-mclag to s5248-02, s5248-03"))
		})

		It("should keep the ports of every switch disjoint", func() {
			req.ConnectionsPerServer = 4
			req.ServerCount = 12
			expectDisjointPorts(build())
		})

		It("should reject a single leaf", func() {
			req.Leaf.Count = 1
			_, err := New(&Config{Request: req, Catalog: c})
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, ErrInsufficientLeavesForRedundancy)).To(BeTrue())
		})
	})

	Context("with ESLAG servers on eight links", func() {
		It("should spread every server over four leaves", func() {
			req.ServerRedundancyMode = template.RedundancyModeESLAG
			req.ConnectionsPerServer = 8
			f := build()

			for _, s := range f.GetServers() {
				Expect(s.AttachedLeaves).To(HaveLen(4))
				Expect(s.InterfaceNames).To(HaveLen(8))
			}
			conns := connectionsOf(f.Manifests())
			eslag := conns[12]
			Expect(eslag.Name).To(Equal("server-1--eslag--s5248-01--s5248-02--s5248-03--s5248-04"))
			Expect(eslag.Spec.ESLAG.Links).To(HaveLen(8))
			Expect(conns[13].Name).To(Equal("server-2--eslag--s5248-02--s5248-03--s5248-04--s5248-01"))
			expectDisjointPorts(f)
		})
	})

	Context("with an invalid request", func() {
		It("should reject uneven fanout before allocating", func() {
			req.Spine.Count = 3
			_, err := New(&Config{Request: req, Catalog: c})
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, ErrUnevenFabricFanout)).To(BeTrue())
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())
		})

		It("should report a capacity shortfall", func() {
			req.Leaf.FabricPortsPerLeaf = 10
			_, err := New(&Config{Request: req, Catalog: c})
			var capErr *CapacityError
			Expect(errors.As(err, &capErr)).To(BeTrue())
			Expect(capErr.Shortfall()).To(Equal(2))
		})

		It("should require a catalog", func() {
			_, err := New(&Config{Request: req})
			Expect(err).To(HaveOccurred())
		})
	})
})
