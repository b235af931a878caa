package fabric

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeaves(t *testing.T, n int) []*SwitchInstance {
	t.Helper()
	p := bundledProfile(t, "dell-s5248f-on")
	leaves := make([]*SwitchInstance, 0, n)
	for i := 0; i < n; i++ {
		leaves = append(leaves, NewSwitchInstance(SwitchName(p.ShortName, i), i, RoleLeaf, p))
	}
	return leaves
}

func serverRequest(mode template.RedundancyMode, k int) *template.FabricRequest {
	req := testRequest()
	req.ServerRedundancyMode = mode
	req.ConnectionsPerServer = k
	return req.WithDefaults()
}

func TestServerNames(t *testing.T) {
	assert.Equal(t, "server-1", ServerName(0))
	assert.Equal(t, "server-12", ServerName(11))
	assert.Equal(t, []string{"enp0s1", "enp0s2", "enp1s1", "enp1s2", "enp3s2"},
		[]string{serverInterfaceName(0), serverInterfaceName(1), serverInterfaceName(2), serverInterfaceName(3), serverInterfaceName(7)})
}

func TestLeafIndexes(t *testing.T) {
	tests := []struct {
		name    string
		mode    template.RedundancyMode
		pairing template.MCLAGPairing
		k       int
		leaves  int
		servers int
		want    [][]int
	}{
		{
			name:    "unbundled rotates",
			mode:    template.RedundancyModeUnbundled,
			k:       1,
			leaves:  4,
			servers: 6,
			want:    [][]int{{0}, {1}, {2}, {3}, {0}, {1}},
		},
		{
			name:    "lag stays on one leaf",
			mode:    template.RedundancyModeLAG,
			k:       4,
			leaves:  2,
			servers: 3,
			want:    [][]int{{0, 0, 0, 0}, {1, 1, 1, 1}, {0, 0, 0, 0}},
		},
		{
			name:    "mclag rotating",
			mode:    template.RedundancyModeMCLAG,
			pairing: template.MCLAGPairingRotating,
			k:       2,
			leaves:  4,
			servers: 4,
			want:    [][]int{{0, 1}, {1, 2}, {2, 3}, {0, 1}},
		},
		{
			// links beyond the first two alternate over the same pair
			name:    "mclag fixed",
			mode:    template.RedundancyModeMCLAG,
			pairing: template.MCLAGPairingFixed,
			k:       4,
			leaves:  4,
			servers: 3,
			want:    [][]int{{0, 1, 0, 1}, {2, 3, 2, 3}, {0, 1, 0, 1}},
		},
		{
			name:    "eslag eight links over four leaves",
			mode:    template.RedundancyModeESLAG,
			k:       8,
			leaves:  4,
			servers: 2,
			want:    [][]int{{0, 0, 1, 1, 2, 2, 3, 3}, {1, 1, 2, 2, 3, 3, 0, 0}},
		},
		{
			name:    "eslag two links",
			mode:    template.RedundancyModeESLAG,
			k:       2,
			leaves:  3,
			servers: 3,
			want:    [][]int{{0, 1}, {1, 2}, {2, 0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := serverRequest(tt.mode, tt.k)
			if tt.pairing != "" {
				req.MCLAGPairing = tt.pairing
			}
			got := make([][]int, 0, tt.servers)
			for s := 0; s < tt.servers; s++ {
				idx, err := leafIndexes(req, s, tt.leaves)
				require.NoError(t, err)
				got = append(got, idx)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("leafIndexes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLeafIndexesErrors(t *testing.T) {
	_, err := leafIndexes(serverRequest(template.RedundancyModeMCLAG, 2), 0, 1)
	assert.True(t, errors.Is(err, ErrInsufficientLeavesForRedundancy))

	_, err = leafIndexes(serverRequest(template.RedundancyModeMCLAG, 2), 0, 3)
	assert.True(t, errors.Is(err, ErrInsufficientLeavesForRedundancy))

	_, err = leafIndexes(serverRequest(template.RedundancyModeESLAG, 8), 0, 3)
	assert.True(t, errors.Is(err, ErrInsufficientLeavesForRedundancy))

	_, err = leafIndexes(serverRequest(template.RedundancyModeUnbundled, 2), 0, 4)
	assert.True(t, errors.Is(err, ErrInvalidConnectionCount))

	_, err = leafIndexes(serverRequest(template.RedundancyModeESLAG, 1), 0, 4)
	assert.True(t, errors.Is(err, ErrInvalidConnectionCount))

	_, err = leafIndexes(serverRequest(template.RedundancyModeLAG, 6), 0, 4)
	assert.True(t, errors.Is(err, ErrInvalidConnectionCount))
}

func TestPlanServersUnbundled(t *testing.T) {
	leaves := testLeaves(t, 4)
	req := serverRequest(template.RedundancyModeUnbundled, 1)

	servers, links, err := PlanServers(8, leaves, req)
	require.NoError(t, err)
	require.Len(t, servers, 8)
	require.Len(t, links, 8)

	assert.Equal(t, "server-1", servers[0].ID)
	assert.Equal(t, []string{"s5248-01"}, servers[0].AttachedLeaves)
	assert.Equal(t, []string{"enp0s1"}, servers[0].InterfaceNames)
	assert.Equal(t, "server-1--unbundled--s5248-01", servers[0].Connection)

	want := LinkRecord{
		Kind:    LinkKindServer,
		A:       Endpoint{DeviceID: "server-5", PortID: "enp0s1"},
		B:       Endpoint{DeviceID: "s5248-01", PortID: "E1/2"},
		GroupID: "server-5--unbundled--s5248-01",
		Mode:    template.RedundancyModeUnbundled,
		Speed:   25,
	}
	assert.Equal(t, want, links[4])
	assert.Equal(t, "E1/1", links[0].B.PortID)

	for _, l := range leaves {
		assert.Equal(t, 2, l.UsedPorts.Len(), "leaf %s", l.ID)
	}
}

func TestPlanServersMCLAG(t *testing.T) {
	leaves := testLeaves(t, 4)
	req := serverRequest(template.RedundancyModeMCLAG, 2)

	servers, links, err := PlanServers(4, leaves, req)
	require.NoError(t, err)
	require.Len(t, links, 8)

	assert.Equal(t, []string{"s5248-02", "s5248-03"}, servers[1].AttachedLeaves)
	assert.Equal(t, "server-2--mclag--s5248-02--s5248-03", servers[1].Connection)
	assert.Equal(t, []string{"enp0s1", "enp0s2"}, servers[1].InterfaceNames)

	// server-1 and server-4 both land on leaves 1 and 2
	assert.Equal(t, []string{"s5248-01", "s5248-02"}, servers[3].AttachedLeaves)
	assert.Equal(t, 2, leaves[0].UsedPorts.Len())
	assert.Equal(t, 3, leaves[1].UsedPorts.Len())
	assert.Equal(t, 1, leaves[3].UsedPorts.Len())

	for _, l := range links {
		assert.Equal(t, l.GroupID, serverConnectionName(l.A.DeviceID, template.RedundancyModeMCLAG,
			servers[serverIndexOf(t, servers, l.A.DeviceID)].AttachedLeaves))
	}
}

func TestPlanServersMCLAGSpansOnePair(t *testing.T) {
	for _, k := range []int{2, 4, 8} {
		leaves := testLeaves(t, 4)
		servers, links, err := PlanServers(6, leaves, serverRequest(template.RedundancyModeMCLAG, k))
		require.NoError(t, err, "k=%d", k)
		require.Len(t, links, 6*k)
		for _, s := range servers {
			assert.Len(t, s.AttachedLeaves, 2, "k=%d server %s", k, s.ID)
			assert.Len(t, s.InterfaceNames, k)
		}
	}
}

func serverIndexOf(t *testing.T, servers []ServerInstance, id string) int {
	t.Helper()
	for i, s := range servers {
		if s.ID == id {
			return i
		}
	}
	t.Fatalf("server %s not found", id)
	return -1
}

func TestPlanServersESLAG(t *testing.T) {
	leaves := testLeaves(t, 4)
	req := serverRequest(template.RedundancyModeESLAG, 8)

	servers, links, err := PlanServers(1, leaves, req)
	require.NoError(t, err)
	require.Len(t, links, 8)

	assert.Equal(t, []string{"s5248-01", "s5248-02", "s5248-03", "s5248-04"}, servers[0].AttachedLeaves)
	assert.Equal(t, "server-1--eslag--s5248-01--s5248-02--s5248-03--s5248-04", servers[0].Connection)

	got := make([]string, 0, len(links))
	for _, l := range links {
		got = append(got, l.B.String())
	}
	want := []string{
		"s5248-01/E1/1", "s5248-01/E1/2",
		"s5248-02/E1/1", "s5248-02/E1/2",
		"s5248-03/E1/1", "s5248-03/E1/2",
		"s5248-04/E1/1", "s5248-04/E1/2",
	}
	assert.Equal(t, want, got)
	assert.Equal(t, "enp3s2", links[7].A.PortID)
}

func TestPlanServersSpeed(t *testing.T) {
	leaves := testLeaves(t, 2)
	req := serverRequest(template.RedundancyModeUnbundled, 1)
	req.ServerSpeed = catalog.MustParseSpeed("10G")

	_, links, err := PlanServers(2, leaves, req)
	require.NoError(t, err)
	assert.Equal(t, catalog.Speed(10), links[0].Speed)
	assert.Equal(t, catalog.Speed(10), leaves[0].Assignments[0].Speed)
	assert.Empty(t, leaves[0].Assignments[0].BreakoutMode)
}

func TestPlanServersRollback(t *testing.T) {
	leaves := testLeaves(t, 2)
	// leaf 2 has a single server port left
	taken := leaves[1].Profile.PortsForRole(catalog.PortRoleServer)[:47]
	require.NoError(t, leaves[1].reserve(taken...))

	req := serverRequest(template.RedundancyModeUnbundled, 1)
	_, _, err := PlanServers(6, leaves, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientPorts))
	assert.Contains(t, err.Error(), "s5248-02")

	assert.Zero(t, leaves[0].UsedPorts.Len(), "leaf 1 allocation must be rolled back")
	assert.Empty(t, leaves[0].Assignments)
	assert.Equal(t, 47, leaves[1].UsedPorts.Len())
	assert.Len(t, leaves[1].Assignments, 47)
}

func TestPlanServersNone(t *testing.T) {
	servers, links, err := PlanServers(0, testLeaves(t, 2), serverRequest(template.RedundancyModeUnbundled, 1))
	assert.NoError(t, err)
	assert.Empty(t, servers)
	assert.Empty(t, links)

	_, _, err = PlanServers(1, nil, serverRequest(template.RedundancyModeUnbundled, 1))
	assert.True(t, errors.Is(err, ErrInsufficientLeavesForRedundancy))
}

func TestServerDistributionBalance(t *testing.T) {
	req := serverRequest(template.RedundancyModeUnbundled, 1)
	for leaves := 1; leaves <= 6; leaves++ {
		for servers := 0; servers <= 20; servers++ {
			demand, err := leafDemand(req, servers, leaves)
			require.NoError(t, err)

			lo, hi, sum := demand[0], demand[0], 0
			for _, d := range demand {
				lo, hi, sum = min(lo, d), max(hi, d), sum+d
			}
			assert.LessOrEqual(t, hi-lo, 1, "%d servers on %d leaves", servers, leaves)
			assert.Equal(t, servers, sum)
			// the first leaves take the remainder
			for i := 0; i < servers%leaves; i++ {
				assert.Equal(t, hi, demand[i])
			}
		}
	}
}
