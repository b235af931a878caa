package fabric

import (
	"fmt"

	"github.com/henderiw/fabricwiring/catalog"
	"github.com/henderiw/fabricwiring/template"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// ValidationResult lists every problem found in a request.
type ValidationResult struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`

	violations []error
}

// Err returns nil for a valid request. Otherwise the returned error matches
// ErrInvalidRequest and the class of every violation it holds.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return &ValidationError{Aggregate: utilerrors.NewAggregate(r.violations)}
}

type ValidationError struct {
	utilerrors.Aggregate
}

func (e *ValidationError) Error() string {
	return ErrInvalidRequest.Error() + ": " + e.Aggregate.Error()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest || e.Aggregate.Is(target)
}

func (e *ValidationError) Unwrap() []error { return e.Errors() }

// violation is a field error tagged with the error class it belongs to.
type violation struct {
	err   *field.Error
	class error
}

func (v *violation) Error() string { return v.err.Error() }

func (v *violation) Unwrap() error { return v.class }

type validator struct {
	violations []error
}

func (v *validator) add(class error, err *field.Error) {
	v.violations = append(v.violations, &violation{err: err, class: class})
}

func (v *validator) result() ValidationResult {
	res := ValidationResult{OK: len(v.violations) == 0, violations: v.violations}
	for _, err := range v.violations {
		res.Errors = append(res.Errors, err.Error())
	}
	return res
}

// validate checks the configured request before anything is allocated.
func (r *fabric) validate() error {
	res := Validate(r.cfg.Request, r.cfg.Catalog)
	if !res.OK {
		r.log.Debug("request rejected", "errors", res.Errors)
	}
	return res.Err()
}

// Validate checks a request against the catalog. All checks run so that every
// problem is reported at once; capacity is counted in logical ports after
// breakout expansion.
func Validate(req *template.FabricRequest, c *catalog.Catalog) ValidationResult {
	v := &validator{}
	fldPath := field.NewPath("spec")
	if req == nil {
		v.add(ErrInvalidRequest, field.Required(fldPath, "a fabric request is required"))
		return v.result()
	}
	r := req.WithDefaults()
	for _, err := range r.CheckTemplate(fldPath) {
		v.add(ErrInvalidRequest, err)
	}
	spines, leaves := r.Spine.Count, r.Leaf.Count
	uplinks := r.Leaf.FabricPortsPerLeaf
	k := r.ConnectionsPerServer

	if leaves < 1 {
		v.add(ErrInvalidRequest, field.Invalid(fldPath.Child("leaf", "count"), leaves, "must be at least 1"))
	}
	if spines < 1 {
		v.add(ErrInvalidRequest, field.Invalid(fldPath.Child("spine", "count"), spines, "must be at least 1"))
	}
	if spines >= 1 {
		if uplinks < spines {
			v.add(ErrUnevenFabricFanout, field.Invalid(fldPath.Child("leaf", "fabricPortsPerLeaf"), uplinks,
				fmt.Sprintf("must be at least the spine count %d so every leaf reaches every spine", spines)))
		} else if uplinks%spines != 0 {
			v.add(ErrUnevenFabricFanout, field.Invalid(fldPath.Child("leaf", "fabricPortsPerLeaf"), uplinks,
				fmt.Sprintf("must be divisible by the spine count %d", spines)))
		}
	}

	modeOK := v.checkRedundancy(fldPath, r)

	if demand := r.ServerCount * k; r.Leaf.TotalServerPorts < demand {
		v.add(ErrInvalidRequest, field.Invalid(fldPath.Child("leaf", "totalServerPorts"), r.Leaf.TotalServerPorts,
			fmt.Sprintf("must cover the %d server links requested", demand)))
	}

	var spineProfile, leafProfile *catalog.SwitchProfile
	if c != nil {
		var err error
		if r.Spine.Model != "" {
			if spineProfile, err = c.Profile(r.Spine.Model); err != nil {
				v.add(catalog.ErrUnknownModel, field.NotFound(fldPath.Child("spine", "model"), r.Spine.Model))
			}
		}
		if r.Leaf.Model != "" {
			if leafProfile, err = c.Profile(r.Leaf.Model); err != nil {
				v.add(catalog.ErrUnknownModel, field.NotFound(fldPath.Child("leaf", "model"), r.Leaf.Model))
			}
		}
	}
	if spineProfile != nil && leafProfile != nil && spines >= 1 && leaves >= 1 {
		v.checkCapacity(fldPath, r, spineProfile, leafProfile, modeOK)
	}
	v.checkAddressPools(fldPath, r)
	return v.result()
}

// checkRedundancy checks the connection count and the leaves the redundancy
// mode needs. It reports whether servers can be attached at all.
func (v *validator) checkRedundancy(fldPath *field.Path, r *template.FabricRequest) bool {
	k := r.ConnectionsPerServer
	mode := r.ServerRedundancyMode
	ok := true
	if !template.ValidConnectionsPerServer(k) {
		v.add(ErrInvalidConnectionCount, field.Invalid(fldPath.Child("connectionsPerServer"), k,
			fmt.Sprintf("must be one of %v", template.ConnectionsPerServer)))
		ok = false
	}
	if !mode.Valid() {
		// reported by CheckTemplate
		return false
	}
	switch {
	case mode == template.RedundancyModeUnbundled && k != 1:
		v.add(ErrInvalidConnectionCount, field.Invalid(fldPath.Child("connectionsPerServer"), k,
			fmt.Sprintf("%s supports exactly 1 connection per server", mode)))
		ok = false
	case (mode == template.RedundancyModeMCLAG || mode == template.RedundancyModeESLAG) && k < 2:
		v.add(ErrInvalidConnectionCount, field.Invalid(fldPath.Child("connectionsPerServer"), k,
			fmt.Sprintf("%s needs at least 2 connections per server", mode)))
		ok = false
	}

	leaves := r.Leaf.Count
	if span := mode.LeafSpan(k); leaves < span {
		v.add(ErrInsufficientLeavesForRedundancy, field.Invalid(fldPath.Child("leaf", "count"), leaves,
			fmt.Sprintf("%s with %d connections per server needs at least %d leaves", mode, k, span)))
		ok = false
	} else if mode == template.RedundancyModeMCLAG && leaves%2 != 0 {
		v.add(ErrInsufficientLeavesForRedundancy, field.Invalid(fldPath.Child("leaf", "count"), leaves,
			fmt.Sprintf("%s needs an even number of leaves to pair", mode)))
		ok = false
	}
	return ok
}

// checkCapacity dry-runs the port allocation of one leaf (loopback, uplinks,
// then server ports) and checks the spine downlinks.
func (v *validator) checkCapacity(fldPath *field.Path, r *template.FabricRequest, spineProfile, leafProfile *catalog.SwitchProfile, modeOK bool) {
	spines, leaves := r.Spine.Count, r.Leaf.Count
	uplinks := r.Leaf.FabricPortsPerLeaf
	fabricSpeed, serverSpeed := resolveSpeeds(r, leafProfile)

	leaf := NewSwitchInstance(leafProfile.ShortName, 0, RoleLeaf, leafProfile)
	loopback, err := loopbackPorts(leafProfile)
	if err != nil {
		v.add(&CapacityError{Switch: leafProfile.Model, Role: catalog.PortRoleServer, Required: loopbackPortCount,
			Available: len(leafProfile.PortsForRole(catalog.PortRoleServer))},
			field.Invalid(fldPath.Child("leaf", "model"), leafProfile.Model, err.Error()))
		return
	}
	_ = leaf.reserve(loopback...)

	fabricPorts := leafProfile.PortsForRole(catalog.PortRoleFabric)
	available := leafProfile.LogicalCapacity(freePorts(leaf, fabricPorts), fabricSpeed)
	if available < uplinks {
		capErr := &CapacityError{Switch: leafProfile.Model, Role: catalog.PortRoleFabric, Speed: fabricSpeed,
			Required: uplinks, Available: available}
		v.add(capErr, field.Invalid(fldPath.Child("leaf", "fabricPortsPerLeaf"), uplinks, capErr.Error()))
	} else if _, err := leaf.allocate(fabricPorts, uplinks, fabricSpeed); err != nil {
		v.add(ErrCapacityExceeded, field.Invalid(fldPath.Child("leaf", "fabricPortsPerLeaf"), uplinks, err.Error()))
	}

	required := ceilDiv(r.Leaf.TotalServerPorts, leaves)
	if modeOK {
		demand, err := leafDemand(r, r.ServerCount, leaves)
		if err == nil {
			for _, d := range demand {
				required = max(required, d)
			}
		}
	}
	serverPorts := freePorts(leaf, leafProfile.PortsForRole(catalog.PortRoleServer))
	if available := leafProfile.LogicalCapacity(serverPorts, serverSpeed); available < required {
		capErr := &CapacityError{Switch: leafProfile.Model, Role: catalog.PortRoleServer, Speed: serverSpeed,
			Required: required, Available: available}
		v.add(capErr, field.Invalid(fldPath.Child("leaf", "totalServerPorts"), r.Leaf.TotalServerPorts, capErr.Error()))
	}

	if spines >= 1 && uplinks%spines == 0 {
		required := ceilDiv(leaves*uplinks, spines)
		available := spineProfile.LogicalCapacity(spineProfile.PortsForRole(catalog.PortRoleFabric), fabricSpeed)
		if available < required {
			capErr := &CapacityError{Switch: spineProfile.Model, Role: catalog.PortRoleFabric, Speed: fabricSpeed,
				Required: required, Available: available}
			v.add(capErr, field.Invalid(fldPath.Child("spine", "model"), spineProfile.Model, capErr.Error()))
		}
	}
}

// checkAddressPools makes sure the protocol and VTEP pools hold an address for
// every switch that needs one.
func (v *validator) checkAddressPools(fldPath *field.Path, r *template.FabricRequest) {
	p := fldPath.Child("addressing")
	if pool, err := newAddressPool(r.Addressing.ProtocolSubnet); err == nil {
		if need := r.Spine.Count + r.Leaf.Count; pool.size() < need {
			v.add(ErrCapacityExceeded, field.Invalid(p.Child("protocolSubnet"), r.Addressing.ProtocolSubnet,
				fmt.Sprintf("holds %d addresses, %d switches need one", pool.size(), need)))
		}
	}
	if pool, err := newAddressPool(r.Addressing.VTEPSubnet); err == nil {
		if need := r.Leaf.Count; pool.size() < need {
			v.add(ErrCapacityExceeded, field.Invalid(p.Child("vtepSubnet"), r.Addressing.VTEPSubnet,
				fmt.Sprintf("holds %d addresses, %d leaves need one", pool.size(), need)))
		}
	}
}

func freePorts(s *SwitchInstance, ports []string) []string {
	free := make([]string, 0, len(ports))
	for _, id := range ports {
		if !s.UsedPorts.Has(id) {
			free = append(free, id)
		}
	}
	return free
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
