package wiring

import (
	"bytes"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

const separator = "---\n"

// Marshal renders the objects as one multi-document YAML stream, in order.
func Marshal(objs []Object) ([]byte, error) {
	buf := &bytes.Buffer{}
	for i, obj := range objs {
		b, err := yaml.Marshal(obj)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot marshal %s %s", obj.GetObjectKind().GroupVersionKind().Kind, obj.GetName())
		}
		if i > 0 {
			buf.WriteString(separator)
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// CountByKind returns how many objects of every kind the list holds.
func CountByKind(objs []Object) map[string]int {
	counts := map[string]int{}
	for _, obj := range objs {
		counts[obj.GetObjectKind().GroupVersionKind().Kind]++
	}
	return counts
}
