package catalog

import (
	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Eligible reports whether a file should be migrated against the given
// definitions snapshot: its target must still be defined, and its packet must
// still be defined for the matching direction unless the packet name is the
// ALL sentinel.
func Eligible(f types.LogFileRef, snap types.Snapshot) bool {
	if _, ok := snap.Targets[f.Target]; !ok {
		return false
	}
	if f.Packet == types.AllPacketsName {
		return true
	}

	var packets map[string]struct{}
	if f.Direction == types.DirectionCMD {
		packets = snap.CMDPackets[f.Target]
	} else {
		packets = snap.TLMPackets[f.Target]
	}
	_, ok := packets[f.Packet]
	return ok
}

// FilterEligible returns the files from refs that pass Eligible, preserving order.
func FilterEligible(refs []types.LogFileRef, snap types.Snapshot) []types.LogFileRef {
	out := refs[:0:0]
	for _, f := range refs {
		if Eligible(f, snap) {
			out = append(out, f)
		}
	}
	return out
}

// TrimResumed returns the files strictly older than the checkpoint's last file
// timestamp. Files at or after that timestamp were already migrated by a
// previous run.
func TrimResumed(refs []types.LogFileRef, cp *types.Checkpoint) []types.LogFileRef {
	if cp == nil || cp.LastFileTime.IsZero() {
		return refs
	}
	out := refs[:0:0]
	for _, f := range refs {
		if f.Timestamp.Before(cp.LastFileTime) {
			out = append(out, f)
		}
	}
	return out
}
