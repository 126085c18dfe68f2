package mover

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/decommigrate/internal/testutil"
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

const srcKey = "DEFAULT/decom_logs/tlm/INST/20260115/file.bin"

func TestProcessedPath(t *testing.T) {
	assert.Equal(t,
		"DEFAULT/processed/decom_logs/tlm/INST/20260115/file.bin",
		ProcessedPath(srcKey))
}

func TestErrorPath(t *testing.T) {
	assert.Equal(t,
		"DEFAULT/error/decom_logs/tlm/INST/20260115/file.bin",
		ErrorPath(srcKey))
}

func TestPathsReplaceFirstSegmentOnly(t *testing.T) {
	key := "DEFAULT/decom_logs/tlm/X/decom_logs/file.bin"
	assert.Equal(t, "DEFAULT/processed/decom_logs/tlm/X/decom_logs/file.bin", ProcessedPath(key))
}

func TestMarkProcessed(t *testing.T) {
	bkt := testutil.NewMockBucket()
	bkt.Put(srcKey, []byte("data"))

	m := New(bkt, nil)
	file := types.LogFileRef{BucketPath: srcKey}
	require.NoError(t, m.MarkProcessed(context.Background(), file))

	assert.False(t, bkt.Has(srcKey))
	assert.True(t, bkt.Has(ProcessedPath(srcKey)))
}

func TestMarkError(t *testing.T) {
	bkt := testutil.NewMockBucket()
	bkt.Put(srcKey, []byte("data"))

	m := New(bkt, nil)
	file := types.LogFileRef{BucketPath: srcKey}
	require.NoError(t, m.MarkError(context.Background(), file))

	assert.False(t, bkt.Has(srcKey))
	assert.True(t, bkt.Has(ErrorPath(srcKey)))
}

func TestMoveIdempotentOverwrite(t *testing.T) {
	bkt := testutil.NewMockBucket()
	bkt.Put(srcKey, []byte("data"))
	// A prior interrupted attempt already copied the file.
	bkt.Put(ProcessedPath(srcKey), []byte("data"))

	m := New(bkt, nil)
	require.NoError(t, m.MarkProcessed(context.Background(), types.LogFileRef{BucketPath: srcKey}))
	assert.False(t, bkt.Has(srcKey))
}

func TestMoveCopyFailureLeavesOriginal(t *testing.T) {
	bkt := testutil.NewMockBucket()
	bkt.Put(srcKey, []byte("data"))
	bkt.CopyErr[srcKey] = errors.New("denied")

	m := New(bkt, nil)
	err := m.MarkProcessed(context.Background(), types.LogFileRef{BucketPath: srcKey})
	require.Error(t, err)
	assert.True(t, bkt.Has(srcKey))
	assert.False(t, bkt.Has(ProcessedPath(srcKey)))
}

func TestMoveRejectsKeyOutsideDecomLogs(t *testing.T) {
	m := New(testutil.NewMockBucket(), nil)
	err := m.MarkProcessed(context.Background(), types.LogFileRef{BucketPath: "DEFAULT/other/file.bin"})
	assert.Error(t, err)
}
