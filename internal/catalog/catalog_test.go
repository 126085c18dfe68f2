package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/decommigrate/internal/testutil"
)

func logKey(dir, target, date, start string) string {
	return "DEFAULT/decom_logs/" + dir + "/" + target + "/" + date + "/" +
		start + "__" + start + "__" + target + "__STATUS__rt__decom.bin"
}

func TestListSortsNewestFirst(t *testing.T) {
	bkt := testutil.NewMockBucket()
	oldest := logKey("tlm", "INST", "20260113", "20260113000000000000000")
	middle := logKey("tlm", "INST", "20260114", "20260114000000000000000")
	newest := logKey("tlm", "INST", "20260115", "20260115000000000000000")
	bkt.Put(oldest, nil)
	bkt.Put(newest, nil)
	bkt.Put(middle, nil)

	cat := New(bkt, "DEFAULT", nil)
	refs, err := cat.List(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, newest, refs[0].BucketPath)
	assert.Equal(t, middle, refs[1].BucketPath)
	assert.Equal(t, oldest, refs[2].BucketPath)
}

func TestListTieKeepsDiscoveryOrder(t *testing.T) {
	bkt := testutil.NewMockBucket()
	// Same start timestamp, different directions. The telemetry prefix is
	// walked first, so its file must stay ahead of the command file.
	tlm := logKey("tlm", "INST", "20260115", "20260115000000000000000")
	cmd := logKey("cmd", "INST", "20260115", "20260115000000000000000")
	bkt.Put(cmd, nil)
	bkt.Put(tlm, nil)

	cat := New(bkt, "DEFAULT", nil)
	refs, err := cat.List(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, tlm, refs[0].BucketPath)
	assert.Equal(t, cmd, refs[1].BucketPath)
}

func TestListSkipsNonDecomAndUnparseable(t *testing.T) {
	bkt := testutil.NewMockBucket()
	good := logKey("tlm", "INST", "20260115", "20260115000000000000000")
	bkt.Put(good, nil)
	bkt.Put("DEFAULT/decom_logs/tlm/INST/20260115/notes.txt", nil)
	bkt.Put("DEFAULT/decom_logs/tlm/INST/20260115/badname.bin", nil)

	cat := New(bkt, "DEFAULT", nil)
	refs, err := cat.List(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, good, refs[0].BucketPath)
}

func TestListSkipsFailedSubtree(t *testing.T) {
	bkt := testutil.NewMockBucket()
	good := logKey("tlm", "INST", "20260115", "20260115000000000000000")
	bkt.Put(good, nil)
	bkt.Put(logKey("cmd", "INST", "20260115", "20260114000000000000000"), nil)
	bkt.ListErr["DEFAULT/decom_logs/cmd/"] = errors.New("access denied")

	cat := New(bkt, "DEFAULT", nil)
	refs, err := cat.List(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, good, refs[0].BucketPath)
}

func TestListCancelled(t *testing.T) {
	bkt := testutil.NewMockBucket()
	bkt.Put(logKey("tlm", "INST", "20260115", "20260115000000000000000"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cat := New(bkt, "DEFAULT", nil)
	_, err := cat.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestListEmptyBucket(t *testing.T) {
	cat := New(testutil.NewMockBucket(), "DEFAULT", nil)
	refs, err := cat.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refs)
}
