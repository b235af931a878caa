package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Speed is a port speed in Gbps.
type Speed uint32

func ParseSpeed(s string) (Speed, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "G") {
		return 0, errors.Errorf("invalid speed %q: expected a value like 25G", s)
	}
	v, err := strconv.ParseUint(strings.TrimSuffix(s, "G"), 10, 32)
	if err != nil || v == 0 {
		return 0, errors.Errorf("invalid speed %q: expected a value like 25G", s)
	}
	return Speed(v), nil
}

func MustParseSpeed(s string) Speed {
	sp, err := ParseSpeed(s)
	if err != nil {
		panic(err)
	}
	return sp
}

func (s Speed) String() string {
	if s == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(s), 10) + "G"
}

func (s Speed) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Speed) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.Wrap(err, "speed must be a string like 25G")
	}
	if str == "" {
		*s = 0
		return nil
	}
	v, err := ParseSpeed(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// parseBreakoutMode parses tokens like 4x25G into a structured mode.
func parseBreakoutMode(name string) (BreakoutMode, error) {
	count, speed, ok := strings.Cut(name, "x")
	if !ok {
		return BreakoutMode{}, errors.Errorf("invalid breakout mode %q: expected <count>x<speed>", name)
	}
	n, err := strconv.Atoi(count)
	if err != nil || n < 1 {
		return BreakoutMode{}, errors.Errorf("invalid breakout mode %q: bad sub-port count", name)
	}
	sp, err := ParseSpeed(speed)
	if err != nil {
		return BreakoutMode{}, errors.Wrapf(err, "invalid breakout mode %q", name)
	}
	return BreakoutMode{Name: name, SubPortCount: n, SubPortSpeed: sp}, nil
}
