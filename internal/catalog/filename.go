// Package catalog discovers and orders the decom log files eligible for migration.
package catalog

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Decom log basenames follow
// <start>__<end>__<TARGET>__<PACKET>__rt__decom.bin[.gz]
// where each timestamp is YYYYMMDDHHMMSS followed by nine nanosecond digits.
const timestampLayout = "20060102150405"

// ParseTimestamp parses a filename-encoded timestamp, with or without the
// nanosecond suffix.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) < len(timestampLayout) {
		return time.Time{}, fmt.Errorf("timestamp %q too short", s)
	}
	t, err := time.Parse(timestampLayout, s[:len(timestampLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	if rest := s[len(timestampLayout):]; rest != "" {
		var nsec int64
		for _, r := range rest {
			if r < '0' || r > '9' {
				return time.Time{}, fmt.Errorf("timestamp %q has non-digit nanoseconds", s)
			}
			nsec = nsec*10 + int64(r-'0')
		}
		t = t.Add(time.Duration(nsec))
	}
	return t, nil
}

// ParseFileRef builds a LogFileRef from an object key. The direction comes
// from the path segment below decom_logs/; target, packet, and timestamp come
// from the basename.
func ParseFileRef(key string) (types.LogFileRef, error) {
	direction := types.DirectionTLM
	if strings.Contains(key, "/decom_logs/cmd/") {
		direction = types.DirectionCMD
	}

	base := path.Base(key)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".bin")

	parts := strings.Split(base, "__")
	if len(parts) < 4 {
		return types.LogFileRef{}, fmt.Errorf("filename %q does not match decom log naming", path.Base(key))
	}

	ts, err := ParseTimestamp(parts[0])
	if err != nil {
		return types.LogFileRef{}, err
	}
	if parts[2] == "" || parts[3] == "" {
		return types.LogFileRef{}, fmt.Errorf("filename %q has empty target or packet", path.Base(key))
	}

	return types.LogFileRef{
		BucketPath: key,
		Direction:  direction,
		Target:     parts[2],
		Packet:     parts[3],
		Timestamp:  ts,
	}, nil
}

// IsDecomLog reports whether the key carries a recognized decom log extension.
func IsDecomLog(key string) bool {
	return strings.HasSuffix(key, ".bin") || strings.HasSuffix(key, ".bin.gz")
}
