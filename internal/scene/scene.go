// Package scene provides access to externally produced scene indexes: a
// local JSON file store and a client for a hosted video-search API.
package scene

import (
	"context"
	"sort"

	"github.com/clipforge/clipforge/pkg/types"
)

// Source supplies the scene index for a video.
type Source interface {
	Scenes(ctx context.Context, videoID string) ([]types.SceneDescriptor, error)
}

// SortScenes orders scenes by start time, in place.
func SortScenes(scenes []types.SceneDescriptor) {
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].StartTime < scenes[j].StartTime
	})
}

// Coverage returns the union of scene ranges as merged, ordered intervals.
// Upstream producers promise ordering but not non-overlap.
func Coverage(scenes []types.SceneDescriptor) []types.TimeRange {
	if len(scenes) == 0 {
		return nil
	}
	ranges := make([]types.TimeRange, 0, len(scenes))
	for _, s := range scenes {
		if s.EndTime > s.StartTime {
			ranges = append(ranges, types.TimeRange{Start: s.StartTime, End: s.EndTime})
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	merged := ranges[:0]
	for _, r := range ranges {
		if len(merged) > 0 && r.Start <= merged[len(merged)-1].End {
			if r.End > merged[len(merged)-1].End {
				merged[len(merged)-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Covered reports whether r lies entirely within one merged coverage
// interval.
func Covered(coverage []types.TimeRange, r types.TimeRange) bool {
	for _, c := range coverage {
		if r.Start >= c.Start && r.End <= c.End {
			return true
		}
	}
	return false
}
