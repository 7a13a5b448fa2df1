package objectstore

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotctl/depotctl/internal/pkg/errs"
)

func encodeField(b []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
	return buf.Bytes()
}

func encodeTuple(fields ...[]byte) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		buf.Write(encodeField(f))
	}
	return buf.Bytes()
}

func checksumBytes(fill byte) []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestParseCommitRootTreeChecksum(t *testing.T) {
	tree := checksumBytes(0xaa)
	treeMeta := checksumBytes(0xbb)
	fields := make([][]byte, 8)
	for i := range fields {
		fields[i] = []byte{}
	}
	fields[CommitRootTreeChecksumField] = tree
	fields[CommitRootTreeMetaField] = treeMeta

	data := encodeTuple(fields...)
	c, err := ParseCommit(data)
	require.NoError(t, err)

	got, err := c.RootTreeChecksum()
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", got)

	gotMeta, err := c.RootTreeMetaChecksum()
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", gotMeta)
}

func TestParseCommitTruncatedFails(t *testing.T) {
	_, err := ParseCommit([]byte{0, 0, 0, 10, 1, 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ParseError)
}

func encodeEntry(name string, checksum []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(name)))
	buf.WriteString(name)
	buf.Write(checksum)
	return buf.Bytes()
}

func TestParseDirTreeFindFile(t *testing.T) {
	metaChecksum := checksumBytes(0xcc)
	filesField := encodeEntry("metadata", metaChecksum)
	subdirsField := []byte{}

	data := encodeTuple(filesField, subdirsField)
	tree, err := ParseDirTree(data)
	require.NoError(t, err)
	require.Len(t, tree.Files, 1)
	assert.Equal(t, "metadata", tree.Files[0].Name)

	checksum, err := tree.FindFile("metadata")
	require.NoError(t, err)
	assert.Equal(t, "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc", checksum)

	_, err = tree.FindFile("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.NotFound)
}

func buildFilez(t *testing.T, header, contents []byte) []byte {
	t.Helper()
	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write(contents)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(header)))
	buf.Write(header)
	buf.Write(make([]byte, 4)) // padding
	buf.Write(compressed.Bytes())
	return buf.Bytes()
}

func TestInflateFilez(t *testing.T) {
	data := buildFilez(t, []byte("hdr"), []byte(`{"name":"org.x.App"}`))
	out, err := InflateFilez(data)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"org.x.App"}`, string(out))
}

func TestInflateFilezHeaderOverrun(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(1000))
	buf.Write([]byte{1, 2, 3})
	_, err := InflateFilez(buf.Bytes())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ParseError)
}
