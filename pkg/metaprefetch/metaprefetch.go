// Package metaprefetch implements the Metadata Prefetcher: obtaining
// just the `metadata` file object for a ref without a full pull (§4.5),
// by walking commit -> root tree -> metadata file entry over direct
// object fetches.
package metaprefetch

import (
	"context"

	"github.com/depotctl/depotctl/internal/pkg/errs"
	"github.com/depotctl/depotctl/pkg/fetch"
	"github.com/depotctl/depotctl/pkg/objectstore"
)

// Fetch retrieves and inflates the metadata file for the commit at
// checksum, served by remoteBaseURL.
func Fetch(ctx context.Context, f *fetch.Fetcher, remoteBaseURL, checksum string) ([]byte, error) {
	commitData, err := f.FetchRemoteObject(ctx, remoteBaseURL, checksum, fetch.Commit)
	if err != nil {
		return nil, errs.Wrapf(errs.NotFound, err, "fetching commit %s", checksum)
	}
	commit, err := objectstore.ParseCommit(commitData)
	if err != nil {
		return nil, err
	}

	treeChecksum, err := commit.RootTreeChecksum()
	if err != nil {
		return nil, err
	}

	treeData, err := f.FetchRemoteObject(ctx, remoteBaseURL, treeChecksum, fetch.DirTree)
	if err != nil {
		return nil, errs.Wrapf(errs.NotFound, err, "fetching root tree %s", treeChecksum)
	}
	tree, err := objectstore.ParseDirTree(treeData)
	if err != nil {
		return nil, err
	}

	metaChecksum, err := tree.FindFile("metadata")
	if err != nil {
		return nil, err
	}

	filezData, err := f.FetchRemoteObject(ctx, remoteBaseURL, metaChecksum, fetch.FileZ)
	if err != nil {
		return nil, errs.Wrapf(errs.NotFound, err, "fetching metadata object %s", metaChecksum)
	}

	return objectstore.InflateFilez(filezData)
}
