// Package objectstore wraps the content-addressed repository: local
// create/open/pull/checkout/prune plus the Remote Fetcher's wire-format
// parsing used by the Metadata Prefetcher (§4.3, §4.5). There is no
// GVariant library anywhere in the retrieved corpus, so the binary tuple
// layouts below are decoded directly with encoding/binary against the
// field orderings the commit and dirtree object types actually use;
// that choice is recorded in DESIGN.md.
package objectstore

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/depotctl/depotctl/internal/pkg/errs"
)

// CommitRootTreeChecksumField and CommitRootTreeMetaField are the
// field indices within a commit object's tuple where the root tree's
// content checksum and metadata checksum live.
const (
	CommitRootTreeChecksumField = 6
	CommitRootTreeMetaField     = 7
)

// Commit is the subset of a parsed commit object this package needs:
// enough fields to reach the root tree, indexed the same way the wire
// object is (index 6 = tree checksum, index 7 = tree meta checksum).
type Commit struct {
	Fields [][]byte
}

// RootTreeChecksum returns the hex string at field index 6.
func (c *Commit) RootTreeChecksum() (string, error) {
	return c.fieldAsChecksum(CommitRootTreeChecksumField)
}

// RootTreeMetaChecksum returns the hex string at field index 7.
func (c *Commit) RootTreeMetaChecksum() (string, error) {
	return c.fieldAsChecksum(CommitRootTreeMetaField)
}

func (c *Commit) fieldAsChecksum(index int) (string, error) {
	if index >= len(c.Fields) {
		return "", errs.Newf(errs.ParseError, "commit object has no field %d", index)
	}
	raw := c.Fields[index]
	if len(raw) != 32 {
		return "", errs.Newf(errs.ParseError, "commit field %d is %d bytes, want 32-byte checksum", index, len(raw))
	}
	return hex.EncodeToString(raw), nil
}

// DirTreeFilesField and DirTreeSubdirsField are the field indices
// within a dirtree object holding the file-entries list and the
// subdirectory-entries list respectively.
const (
	DirTreeFilesField   = 0
	DirTreeSubdirsField = 1
)

// FileEntry is one (name, checksum) pair from a dirtree's file-entries list.
type FileEntry struct {
	Name     string
	Checksum string
}

// DirTree is a parsed root (or nested) tree object.
type DirTree struct {
	Files   []FileEntry
	Subdirs []FileEntry
}

// ParseCommit decodes a raw commit object's tuple fields. The wire
// encoding used here is a flat sequence of length-prefixed byte
// strings; malformed input fails with errs.ParseError.
func ParseCommit(data []byte) (*Commit, error) {
	fields, err := decodeTuple(data)
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "decoding commit object")
	}
	return &Commit{Fields: fields}, nil
}

// ParseDirTree decodes a raw dirtree object into its file and subdir
// entry lists (field index 0 and 1).
func ParseDirTree(data []byte) (*DirTree, error) {
	fields, err := decodeTuple(data)
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "decoding dirtree object")
	}
	if len(fields) < 2 {
		return nil, errs.Newf(errs.ParseError, "dirtree object has %d fields, want at least 2", len(fields))
	}

	files, err := decodeEntryList(fields[DirTreeFilesField])
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "decoding dirtree file entries")
	}
	subdirs, err := decodeEntryList(fields[DirTreeSubdirsField])
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "decoding dirtree subdir entries")
	}
	return &DirTree{Files: files, Subdirs: subdirs}, nil
}

// decodeTuple reads a flat sequence of fields, each a 4-byte
// big-endian length followed by that many bytes.
func decodeTuple(data []byte) ([][]byte, error) {
	var fields [][]byte
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		fields = append(fields, buf)
	}
	return fields, nil
}

// decodeEntryList reads a sequence of (name, checksum) pairs packed as
// repeated [4-byte name length][name][32-byte checksum].
func decodeEntryList(data []byte) ([]FileEntry, error) {
	var entries []FileEntry
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		var nameLen uint32
		if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
			return nil, err
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, err
		}
		checksum := make([]byte, 32)
		if _, err := io.ReadFull(r, checksum); err != nil {
			return nil, err
		}
		entries = append(entries, FileEntry{Name: string(nameBuf), Checksum: hex.EncodeToString(checksum)})
	}
	return entries, nil
}

// FindFile returns the checksum of the file entry named name, failing
// with errs.NotFound if no such entry exists.
func (t *DirTree) FindFile(name string) (string, error) {
	for _, e := range t.Files {
		if e.Name == name {
			return e.Checksum, nil
		}
	}
	return "", errs.Newf(errs.NotFound, "no entry named %q in tree", name)
}

// InflateFilez decodes a filez object's wire layout: a 4-byte
// big-endian header size, that many header bytes, 4 bytes of padding,
// then a raw-DEFLATE stream of the file contents (§4.5 step 4-5).
func InflateFilez(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errs.New(errs.ParseError, "filez object shorter than its size header")
	}
	headerSize := binary.BigEndian.Uint32(data[:4])
	if uint64(headerSize)+8 > uint64(len(data)) {
		return nil, errs.Newf(errs.ParseError, "filez header_size %d overruns object of length %d", headerSize, len(data))
	}

	offset := 4 + int(headerSize) + 4
	r := flate.NewReader(bytes.NewReader(data[offset:]))
	defer r.Close()

	inflated, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, err, "inflating filez contents")
	}
	return inflated, nil
}
