package catalog

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

//go:embed profiles/*.yaml
var bundledProfiles embed.FS

// profileDocument is the on-disk form of a switch profile. Port profiles follow
// the SONiC style: a port either has a fixed speed list or a breakout list.
type profileDocument struct {
	Model        string                        `json:"model"`
	DisplayName  string                        `json:"displayName"`
	ShortName    string                        `json:"shortName"`
	PortProfiles map[string]portProfileDocument `json:"portProfiles"`
	Ports        []portDocument                `json:"ports"`
}

type portProfileDocument struct {
	Speed    *speedDocument    `json:"speed,omitempty"`
	Breakout *breakoutDocument `json:"breakout,omitempty"`
}

type speedDocument struct {
	Default   string   `json:"default"`
	Supported []string `json:"supported,omitempty"`
}

type breakoutDocument struct {
	Default   string   `json:"default"`
	Supported []string `json:"supported"`
}

type portDocument struct {
	ID      string     `json:"id,omitempty"`
	Range   string     `json:"range,omitempty"`
	Roles   []PortRole `json:"roles"`
	Speed   string     `json:"speed,omitempty"`
	Profile string     `json:"profile,omitempty"`
}

var bundled = sync.OnceValues(func() (*Catalog, error) {
	return Load(bundledProfiles)
})

// Bundled returns the catalog compiled into the binary. It is parsed once per
// process.
func Bundled() (*Catalog, error) {
	return bundled()
}

func LoadDir(dir string) (*Catalog, error) {
	return Load(os.DirFS(dir))
}

// Load parses every *.yaml file found in fsys (recursively) as a switch profile.
func Load(fsys fs.FS) (*Catalog, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && (path.Ext(p) == ".yaml" || path.Ext(p) == ".yml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot list switch profiles")
	}
	sort.Strings(files)

	profiles := make([]*SwitchProfile, 0, len(files))
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read switch profile %s", f)
		}
		p, err := ParseProfile(b)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot parse switch profile %s", f)
		}
		profiles = append(profiles, p)
	}
	if len(profiles) == 0 {
		return nil, errors.New("no switch profiles found")
	}
	return New(profiles...)
}

// ParseProfile decodes one profile document and resolves its port profiles and
// breakout modes into a SwitchProfile.
func ParseProfile(b []byte) (*SwitchProfile, error) {
	doc := &profileDocument{}
	if err := yaml.UnmarshalStrict(b, doc); err != nil {
		return nil, err
	}
	if doc.Model == "" {
		return nil, errors.New("model is required")
	}
	sp := &SwitchProfile{
		Model:       doc.Model,
		DisplayName: doc.DisplayName,
		ShortName:   doc.ShortName,
	}
	if sp.ShortName == "" {
		sp.ShortName = doc.Model
	}
	for _, pd := range doc.Ports {
		ids, err := pd.ids()
		if err != nil {
			return nil, errors.Wrapf(err, "model %s", doc.Model)
		}
		for _, id := range ids {
			ps, err := doc.portSpec(id, pd)
			if err != nil {
				return nil, errors.Wrapf(err, "model %s port %s", doc.Model, id)
			}
			sp.Ports = append(sp.Ports, ps)
		}
	}
	if err := sp.buildIndex(); err != nil {
		return nil, err
	}
	return sp, nil
}

func (doc *profileDocument) portSpec(id string, pd portDocument) (PortSpec, error) {
	ps := PortSpec{ID: id, Roles: pd.Roles}
	if len(ps.Roles) == 0 {
		return ps, errors.New("at least one role is required")
	}
	for _, r := range ps.Roles {
		if !r.Valid() {
			return ps, errors.Errorf("invalid role %q", r)
		}
	}

	switch {
	case pd.Speed != "" && pd.Profile != "":
		return ps, errors.New("speed and profile are mutually exclusive")
	case pd.Speed != "":
		s, err := ParseSpeed(pd.Speed)
		if err != nil {
			return ps, err
		}
		ps.BaseSpeed = s
		return ps, nil
	case pd.Profile == "":
		return ps, errors.New("either speed or profile is required")
	}

	prof, ok := doc.PortProfiles[pd.Profile]
	if !ok {
		return ps, errors.Errorf("unknown port profile %q", pd.Profile)
	}
	if prof.Speed != nil {
		s, err := ParseSpeed(prof.Speed.Default)
		if err != nil {
			return ps, err
		}
		ps.BaseSpeed = s
		for _, str := range prof.Speed.Supported {
			s, err := ParseSpeed(str)
			if err != nil {
				return ps, err
			}
			ps.Speeds = append(ps.Speeds, s)
		}
	}
	if prof.Breakout != nil {
		for _, name := range prof.Breakout.Supported {
			m, err := parseBreakoutMode(name)
			if err != nil {
				return ps, err
			}
			ps.BreakoutModes = append(ps.BreakoutModes, m)
		}
		def, err := parseBreakoutMode(prof.Breakout.Default)
		if err != nil {
			return ps, err
		}
		ps.DefaultBreakout = def.Name
		if ps.BaseSpeed == 0 {
			ps.BaseSpeed = def.SubPortSpeed
			if def.SubPortCount > 1 {
				ps.BaseSpeed = Speed(uint32(def.SubPortSpeed) * uint32(def.SubPortCount))
			}
		}
	}
	if ps.BaseSpeed == 0 {
		return ps, errors.Errorf("port profile %q defines neither speed nor breakout", pd.Profile)
	}
	return ps, nil
}

// ids expands either a single id or a range such as E1/1-48.
func (pd portDocument) ids() ([]string, error) {
	if pd.ID != "" && pd.Range != "" {
		return nil, errors.New("id and range are mutually exclusive")
	}
	if pd.ID != "" {
		return []string{pd.ID}, nil
	}
	if pd.Range == "" {
		return nil, errors.New("port id or range is required")
	}
	idx := strings.LastIndex(pd.Range, "/")
	prefix, span := pd.Range[:idx+1], pd.Range[idx+1:]
	from, to, ok := strings.Cut(span, "-")
	if !ok {
		return nil, errors.Errorf("invalid port range %q", pd.Range)
	}
	start, err := strconv.Atoi(from)
	if err != nil {
		return nil, errors.Errorf("invalid port range %q", pd.Range)
	}
	end, err := strconv.Atoi(to)
	if err != nil || end < start {
		return nil, errors.Errorf("invalid port range %q", pd.Range)
	}
	ids := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		ids = append(ids, prefix+strconv.Itoa(i))
	}
	return ids, nil
}
