// Package catalog holds the switch models a fabric can be built from: the
// physical port inventory of every model, the roles each port may take and the
// breakout modes it supports.
package catalog

import (
	"slices"
	"sort"

	"github.com/pkg/errors"
)

var ErrUnknownModel = errors.New("unknown switch model")

// Catalog is a read-only set of switch profiles keyed by model. It is safe for
// concurrent use once constructed.
type Catalog struct {
	profiles map[string]*SwitchProfile
}

func New(profiles ...*SwitchProfile) (*Catalog, error) {
	c := &Catalog{profiles: make(map[string]*SwitchProfile, len(profiles))}
	for _, p := range profiles {
		if _, ok := c.profiles[p.Model]; ok {
			return nil, errors.Errorf("duplicate switch profile %s", p.Model)
		}
		if p.index == nil {
			if err := p.buildIndex(); err != nil {
				return nil, err
			}
		}
		c.profiles[p.Model] = p
	}
	return c, nil
}

func (c *Catalog) Profile(model string) (*SwitchProfile, error) {
	p, ok := c.profiles[model]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModel, "model %q", model)
	}
	return p, nil
}

func (c *Catalog) PortsForRole(model string, role PortRole) ([]string, error) {
	p, err := c.Profile(model)
	if err != nil {
		return nil, err
	}
	return p.PortsForRole(role), nil
}

func (c *Catalog) BreakoutOptions(model, portID string) ([]BreakoutMode, error) {
	p, err := c.Profile(model)
	if err != nil {
		return nil, err
	}
	port, ok := p.Port(portID)
	if !ok {
		return nil, errors.Errorf("model %s has no port %s", model, portID)
	}
	return slices.Clone(port.BreakoutModes), nil
}

func (c *Catalog) Models() []string {
	models := make([]string, 0, len(c.profiles))
	for m := range c.profiles {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
