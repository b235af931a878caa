package fabric

import (
	"net/netip"

	"github.com/henderiw/fabricwiring/template"
	"github.com/pkg/errors"
	"go4.org/netipx"
)

// addressPool hands out /32 host addresses of a prefix in order, skipping the
// network address.
type addressPool struct {
	prefix netip.Prefix
	next   netip.Addr
	last   netip.Addr
}

func newAddressPool(subnet string) (*addressPool, error) {
	p, err := template.ParseIPv4Subnet(subnet)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid subnet %q", subnet)
	}
	r := netipx.RangeOfPrefix(p)
	return &addressPool{prefix: p, next: r.From().Next(), last: r.To()}, nil
}

// size is the number of addresses the pool can hand out.
func (a *addressPool) size() int {
	bits := 32 - a.prefix.Bits()
	if bits >= 31 {
		return 1<<31 - 1
	}
	return 1<<bits - 1
}

func (a *addressPool) allocate() (string, error) {
	if !a.next.IsValid() || a.last.Less(a.next) {
		return "", errors.Errorf("address pool %s is exhausted", a.prefix)
	}
	addr := a.next
	a.next = a.next.Next()
	return netip.PrefixFrom(addr, 32).String(), nil
}

// assignAddresses fills in the ASN and loopback addresses of every switch.
// Spines share one ASN, leaves get consecutive ones. Protocol addresses are
// handed out spines first, VTEP addresses only to leaves.
func assignAddresses(spines, leaves []*SwitchInstance, a *template.AddressingTemplate) error {
	protocol, err := newAddressPool(a.ProtocolSubnet)
	if err != nil {
		return errors.Wrap(err, "protocol subnet")
	}
	vtep, err := newAddressPool(a.VTEPSubnet)
	if err != nil {
		return errors.Wrap(err, "vtep subnet")
	}
	for _, s := range spines {
		s.ASN = a.SpineASN
		if s.ProtocolIP, err = protocol.allocate(); err != nil {
			return errors.Wrapf(err, "switch %s", s.ID)
		}
	}
	for i, l := range leaves {
		l.ASN = a.LeafASNStart + uint32(i)
		if l.ProtocolIP, err = protocol.allocate(); err != nil {
			return errors.Wrapf(err, "switch %s", l.ID)
		}
		if l.VTEPIP, err = vtep.allocate(); err != nil {
			return errors.Wrapf(err, "switch %s", l.ID)
		}
	}
	return nil
}
