package exports

import (
	"bytes"
	"io"

	"github.com/coreos/go-systemd/v22/unit"

	"github.com/depotctl/depotctl/internal/pkg/errs"
)

// document is the shared shape rewriteDocument operates over, satisfied
// by both keyfile.File (.desktop) and serviceDoc (.service) so the
// Exec-rewriting logic in §4.6 is written once.
type document interface {
	Groups() []string
	Keys(group string) []string
	Get(group, key string) (string, bool)
	Set(group, key, value string)
	DeleteKey(group, key string)
	Bytes() ([]byte, error)
}

// serviceDoc adapts go-systemd/v22's ordered []*unit.UnitOption
// representation of a .service file to the document interface, so that
// D-Bus service activation files are parsed and serialized with the
// real systemd-unit-file codec rather than the ini.v1 codec used for
// .desktop files.
type serviceDoc struct {
	order   []string
	options map[string][]*unit.UnitOption
}

func parseServiceDoc(data []byte) (*serviceDoc, error) {
	opts, err := unit.Deserialize(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "parsing service file")
	}
	d := &serviceDoc{options: make(map[string][]*unit.UnitOption)}
	for _, o := range opts {
		if _, ok := d.options[o.Section]; !ok {
			d.order = append(d.order, o.Section)
		}
		d.options[o.Section] = append(d.options[o.Section], o)
	}
	return d, nil
}

func (d *serviceDoc) Groups() []string {
	return append([]string(nil), d.order...)
}

func (d *serviceDoc) Keys(group string) []string {
	var names []string
	for _, o := range d.options[group] {
		names = append(names, o.Name)
	}
	return names
}

func (d *serviceDoc) Get(group, key string) (string, bool) {
	for _, o := range d.options[group] {
		if o.Name == key {
			return o.Value, true
		}
	}
	return "", false
}

func (d *serviceDoc) Set(group, key, value string) {
	for _, o := range d.options[group] {
		if o.Name == key {
			o.Value = value
			return
		}
	}
	if _, ok := d.options[group]; !ok {
		d.order = append(d.order, group)
	}
	d.options[group] = append(d.options[group], unit.NewUnitOption(group, key, value))
}

func (d *serviceDoc) DeleteKey(group, key string) {
	opts := d.options[group]
	out := opts[:0]
	for _, o := range opts {
		if o.Name != key {
			out = append(out, o)
		}
	}
	d.options[group] = out
}

func (d *serviceDoc) Bytes() ([]byte, error) {
	var flat []*unit.UnitOption
	for _, group := range d.order {
		flat = append(flat, d.options[group]...)
	}
	r := unit.Serialize(flat)
	return io.ReadAll(r)
}
