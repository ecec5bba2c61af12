package lode

import (
	"context"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// NewReadDataset opens a dataset for reading with the write-path layout.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return newDataset(dataset, factory)
}

// NewReadDatasetFS opens a filesystem dataset for reading.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// NewReadDatasetS3 opens an S3 dataset for reading.
func NewReadDatasetS3(ctx context.Context, dataset string, s3cfg S3Config) (lode.Dataset, error) {
	factory, err := newS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewReadDataset(dataset, factory)
}

// snapshotMatches reports whether any file of snap lies in the key=value
// partition. An empty value matches everything.
func snapshotMatches(snap *lode.Snapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks for an exact key=value path segment, so
// session=s-1 does not match session=s-10.
func matchesPartitionValue(path, key, value string) bool {
	return slices.Contains(strings.Split(path, "/"), key+"="+value)
}
