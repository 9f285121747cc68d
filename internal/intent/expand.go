package intent

import (
	"fmt"
	"strings"

	"github.com/clipforge/clipforge/pkg/types"
	"golang.org/x/exp/slices"
)

// matched is one scene that satisfied the intent, with its relevance score.
type matched struct {
	scene     types.SceneDescriptor
	relevance int
}

// Expand turns a structured intent and a scene index into an edit plan.
// Pure and deterministic: identical inputs yield identical plans.
//
// Policy: scenes are scored by include-keyword overlap against the summary
// and content label; excluded scenes are dropped outright. When the duration
// bound is exceeded, lowest-relevance segments go first (ties: the shorter
// one goes). Overlapping kept ranges are merged so concat never sees the
// same frames twice, and trims are emitted in source order.
//
// An empty scene index yields an empty plan. A non-empty index where nothing
// matches yields ErrNoMatchingContent.
func Expand(videoID string, intent types.StructuredIntent, scenes []types.SceneDescriptor) (types.EditPlan, error) {
	plan := types.EditPlan{VideoID: videoID}
	if len(scenes) == 0 {
		return plan, nil
	}

	matches := matchScenes(intent, scenes)
	if len(matches) == 0 {
		return types.EditPlan{}, ErrNoMatchingContent
	}

	matches = applyDurationBound(matches, intent.MaxDuration)

	ranges := make([]types.TimeRange, 0, len(matches))
	for _, m := range matches {
		ranges = append(ranges, types.TimeRange{Start: m.scene.StartTime, End: m.scene.EndTime})
	}
	ranges = mergeRanges(ranges)

	var total float64
	trimIDs := make([]string, 0, len(ranges))
	for i, r := range ranges {
		id := fmt.Sprintf("segment_%d", i)
		trimIDs = append(trimIDs, id)
		plan.Operations = append(plan.Operations, types.EditOperation{
			ID:          id,
			Kind:        types.OpTrim,
			SourceRange: r,
		})
		total += r.Duration()
	}

	tail := trimIDs[0]
	if len(trimIDs) > 1 {
		concat := types.EditOperation{
			ID:          "concat_0",
			Kind:        types.OpConcat,
			SourceRange: types.TimeRange{Start: 0, End: total},
			DependsOn:   trimIDs,
		}
		plan.Operations = append(plan.Operations, concat)
		tail = concat.ID
	}

	if intent.Effect != nil {
		plan.Operations = append(plan.Operations, types.EditOperation{
			ID:          fmt.Sprintf("%s_0", intent.Effect.Kind),
			Kind:        intent.Effect.Kind,
			SourceRange: types.TimeRange{Start: 0, End: total},
			Params:      intent.Effect.Params,
			DependsOn:   []string{tail},
		})
	}

	return plan, nil
}

// FullVideoPlan is the fallback when nothing matched but the caller asked to
// keep going: a single trim spanning the whole source.
func FullVideoPlan(videoID string, duration float64) types.EditPlan {
	return types.EditPlan{
		VideoID: videoID,
		Operations: []types.EditOperation{{
			ID:          "segment_0",
			Kind:        types.OpTrim,
			SourceRange: types.TimeRange{Start: 0, End: duration},
		}},
	}
}

func matchScenes(intent types.StructuredIntent, scenes []types.SceneDescriptor) []matched {
	include := intent.Include
	if len(include) == 0 && intent.Mood != "" {
		include = []string{strings.ToLower(intent.Mood)}
	}

	var out []matched
	for _, s := range scenes {
		text := strings.ToLower(s.Summary + " " + string(s.Label))
		if excluded(text, intent.Exclude) {
			continue
		}
		relevance := overlap(text, include)
		if len(include) > 0 && relevance == 0 {
			continue
		}
		out = append(out, matched{scene: s, relevance: relevance})
	}
	return out
}

func excluded(text string, exclude []string) bool {
	for _, kw := range exclude {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func overlap(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

// applyDurationBound drops lowest-relevance matches until the bound is met.
// Among equal relevance the shorter segment goes first; longer continuous
// segments are worth more than many short cuts.
func applyDurationBound(matches []matched, maxDuration float64) []matched {
	if maxDuration <= 0 {
		return matches
	}

	var total float64
	for _, m := range matches {
		total += m.scene.Duration()
	}
	if total <= maxDuration {
		return matches
	}

	// Drop order: ascending relevance, then ascending duration, then latest
	// start first (the earliest-start tie-break keeps the earliest). Indices
	// keep identical scenes distinct so each drop removes one segment.
	order := make([]int, len(matches))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(ai, bi int) int {
		a, b := matches[ai], matches[bi]
		if a.relevance != b.relevance {
			return a.relevance - b.relevance
		}
		if a.scene.Duration() != b.scene.Duration() {
			if a.scene.Duration() < b.scene.Duration() {
				return -1
			}
			return 1
		}
		if a.scene.StartTime != b.scene.StartTime {
			if a.scene.StartTime > b.scene.StartTime {
				return -1
			}
			return 1
		}
		return 0
	})

	dropped := map[int]bool{}
	for _, idx := range order {
		if total <= maxDuration {
			break
		}
		// Always keep at least one segment.
		if len(matches)-len(dropped) == 1 {
			break
		}
		dropped[idx] = true
		total -= matches[idx].scene.Duration()
	}

	kept := make([]matched, 0, len(matches))
	for i, m := range matches {
		if !dropped[i] {
			kept = append(kept, m)
		}
	}
	return kept
}

// mergeRanges sorts ranges by start and merges overlaps.
func mergeRanges(ranges []types.TimeRange) []types.TimeRange {
	slices.SortFunc(ranges, func(a, b types.TimeRange) int {
		if a.Start != b.Start {
			if a.Start < b.Start {
				return -1
			}
			return 1
		}
		return 0
	})

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
