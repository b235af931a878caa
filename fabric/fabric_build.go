package fabric

import (
	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/template"
	"github.com/pkg/errors"
)

// buildRequest resolves the request the fabric is generated from: defaults are
// applied, the switch profiles are looked up and the link speeds are fixed.
func (r *fabric) buildRequest() error {
	req := r.cfg.Request.WithDefaults()

	spine, err := r.cfg.Catalog.Profile(req.Spine.Model)
	if err != nil {
		return errors.Wrap(err, "spine")
	}
	leaf, err := r.cfg.Catalog.Profile(req.Leaf.Model)
	if err != nil {
		return errors.Wrap(err, "leaf")
	}
	req.FabricSpeed, req.ServerSpeed = resolveSpeeds(req, leaf)

	r.req = req
	r.spineProfile = spine
	r.leafProfile = leaf
	r.log.Debug("request resolved",
		"spine", spine.Model, "leaf", leaf.Model,
		"fabricSpeed", req.FabricSpeed.String(), "serverSpeed", req.ServerSpeed.String())
	return nil
}

// resolveSpeeds returns the requested link speeds, falling back to the default
// speed of the leaf's fabric and server ports.
func resolveSpeeds(req *template.FabricRequest, leaf *catalog.SwitchProfile) (catalog.Speed, catalog.Speed) {
	fabricSpeed, serverSpeed := req.FabricSpeed, req.ServerSpeed
	if fabricSpeed == 0 {
		fabricSpeed = leaf.DefaultSpeedForRole(catalog.PortRoleFabric)
	}
	if serverSpeed == 0 {
		serverSpeed = leaf.DefaultSpeedForRole(catalog.PortRoleServer)
	}
	return fabricSpeed, serverSpeed
}
