package main

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/fabric"
	"github.com/henderiw/fabricwiring/wiring"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func printProfiles(w io.Writer, c *catalog.Catalog) error {
	table := newTable(w, "MODEL", "NAME", "SHORT", "FABRIC", "SERVER")
	for _, m := range c.Models() {
		p, err := c.Profile(m)
		if err != nil {
			return err
		}
		table.Append([]string{
			p.Model,
			p.DisplayName,
			p.ShortName,
			strconv.Itoa(len(p.PortsForRole(catalog.PortRoleFabric))),
			strconv.Itoa(len(p.PortsForRole(catalog.PortRoleServer))),
		})
	}
	table.Render()
	return nil
}

func printPorts(w io.Writer, p *catalog.SwitchProfile) {
	table := newTable(w, "PORT", "ROLES", "SPEED", "SPEEDS", "BREAKOUT")
	for _, port := range p.Ports {
		roles := make([]string, 0, len(port.Roles))
		for _, r := range port.Roles {
			roles = append(roles, string(r))
		}
		speeds := make([]string, 0, len(port.Speeds))
		for _, s := range port.Speeds {
			speeds = append(speeds, s.String())
		}
		modes := make([]string, 0, len(port.BreakoutModes))
		for _, m := range port.BreakoutModes {
			name := m.Name
			if name == port.DefaultBreakout {
				name += "*"
			}
			modes = append(modes, name)
		}
		table.Append([]string{
			port.ID,
			strings.Join(roles, ","),
			port.BaseSpeed.String(),
			strings.Join(speeds, ","),
			strings.Join(modes, ","),
		})
	}
	table.Render()
}

func printSummary(w io.Writer, summary []fabric.SwitchSummary) {
	table := newTable(w, "SWITCH", "ROLE", "MODEL", "FABRIC", "SERVER", "PORTS", "ASN", "PROTOCOL IP", "VTEP IP")
	for _, s := range summary {
		table.Append([]string{
			s.Name,
			string(s.Role),
			s.Model,
			strconv.Itoa(s.FabricLinks),
			strconv.Itoa(s.ServerLinks),
			strconv.Itoa(s.PortsUsed) + "/" + strconv.Itoa(s.PortsTotal),
			strconv.FormatUint(uint64(s.ASN), 10),
			s.ProtocolIP,
			s.VTEPIP,
		})
	}
	table.Render()
}

// printManifests lists the emitted objects per kind and the connections per
// type with the cables they describe.
func printManifests(w io.Writer, objs []wiring.Object) {
	counts := wiring.CountByKind(objs)
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	table := newTable(w, "KIND", "OBJECTS")
	for _, k := range kinds {
		table.Append([]string{k, strconv.Itoa(counts[k])})
	}
	table.Render()

	conns, links := map[string]int{}, map[string]int{}
	types := []string{}
	for _, obj := range objs {
		c, ok := obj.(*wiring.Connection)
		if !ok {
			continue
		}
		typ := c.Spec.Type()
		if _, ok := conns[typ]; !ok {
			types = append(types, typ)
		}
		conns[typ]++
		links[typ] += c.Spec.LinkCount()
	}
	table = newTable(w, "CONNECTION", "COUNT", "LINKS")
	for _, typ := range types {
		table.Append([]string{typ, strconv.Itoa(conns[typ]), strconv.Itoa(links[typ])})
	}
	table.Render()
}
