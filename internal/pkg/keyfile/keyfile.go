// Package keyfile is a thin wrapper over gopkg.in/ini.v1 for the
// freedesktop-style key-value format shared by override files, deployment
// metadata, and .desktop entries: groups of "key = value" pairs, with
// keys optionally locale-suffixed ("Name[de]").  ini.v1 preserves group
// and key order and treats bracketed key suffixes as plain characters in
// the key name, which is exactly what that format needs and what a
// hand-rolled parser would otherwise have to reimplement.
package keyfile

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/depotctl/depotctl/internal/pkg/errs"
)

var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:        true,
	PreserveSurroundingSpaces:  false,
	AllowNonUniqueSections:     false,
	SkipUnrecognizableLines:    false,
	AllowPythonMultilineValues: false,
}

// File is a parsed key-value document.
type File struct {
	raw *ini.File
}

// New returns an empty document, used when an optional file is absent.
func New() *File {
	f := ini.Empty(loadOptions)
	return &File{raw: f}
}

// Load reads path and parses it. A missing file is reported via os error
// semantics so callers can distinguish "absent" from "malformed" per the
// override store's contract (absent -> empty context, malformed ->
// parse-error).
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes raw bytes into a document, failing with errs.ParseError
// on malformed input.
func Parse(data []byte) (*File, error) {
	raw, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "parsing key-value document")
	}
	return &File{raw: raw}, nil
}

// Groups lists the section names in file order, skipping the implicit
// DEFAULT section ini.v1 always creates.
func (f *File) Groups() []string {
	var names []string
	for _, s := range f.raw.Sections() {
		if s.Name() == ini.DefaultSection {
			continue
		}
		names = append(names, s.Name())
	}
	return names
}

// HasGroup reports whether group exists.
func (f *File) HasGroup(group string) bool {
	return f.raw.HasSection(group)
}

// Keys lists the key names within group, in file order.
func (f *File) Keys(group string) []string {
	s, err := f.raw.GetSection(group)
	if err != nil {
		return nil
	}
	var names []string
	for _, k := range s.Keys() {
		names = append(names, k.Name())
	}
	return names
}

// Get returns the raw string value of key within group.
func (f *File) Get(group, key string) (string, bool) {
	s, err := f.raw.GetSection(group)
	if err != nil {
		return "", false
	}
	if !s.HasKey(key) {
		return "", false
	}
	return s.Key(key).String(), true
}

// Set assigns key within group, creating both if needed.
func (f *File) Set(group, key, value string) {
	f.raw.Section(group).Key(key).SetValue(value)
}

// DeleteKey removes key from group if present.
func (f *File) DeleteKey(group, key string) {
	if s, err := f.raw.GetSection(group); err == nil {
		s.DeleteKey(key)
	}
}

// DeleteGroup removes an entire group.
func (f *File) DeleteGroup(group string) {
	f.raw.DeleteSection(group)
}

// Bytes serializes the document back to its on-disk representation.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.raw.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "serializing key-value document")
	}
	return buf.Bytes(), nil
}

// Merge overlays other on top of f: every key present in other replaces
// the same key in f, per-group. Used to build system ⊕ user override
// contexts.
func (f *File) Merge(other *File) *File {
	out := New()
	for _, g := range f.Groups() {
		for _, k := range f.Keys(g) {
			v, _ := f.Get(g, k)
			out.Set(g, k, v)
		}
	}
	for _, g := range other.Groups() {
		for _, k := range other.Keys(g) {
			v, _ := other.Get(g, k)
			out.Set(g, k, v)
		}
	}
	return out
}
