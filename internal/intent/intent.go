// Package intent turns a free-form editing instruction into an edit plan in
// two stages: resolution into a closed-schema StructuredIntent, then
// deterministic expansion against the scene index. Policy decisions (segment
// preference, tie-breaks, duration trimming) live only in the expansion
// stage, so they are testable without any reasoning service.
package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/clipforge/clipforge/pkg/types"
	"github.com/pkg/errors"
)

// ErrNoMatchingContent is returned when no scene satisfies the structured
// intent. Callers may broaden the query or fall back to a full-video plan.
var ErrNoMatchingContent = errors.New("no scenes match the requested content")

// ErrInterpretationFailed is returned when the reasoning service could not
// produce a usable structured intent after a retry.
var ErrInterpretationFailed = errors.New("instruction interpretation failed")

// Resolver produces a structured intent from a raw instruction.
type Resolver interface {
	Resolve(ctx context.Context, instruction string) (types.StructuredIntent, error)
}

// KeywordResolver is a deterministic, offline resolver. It extracts
// inclusion/exclusion keywords, a duration bound, and simple effect requests
// from the instruction text. It exists both as the no-API fallback and as
// the reference semantics the LLM resolver is prompted to follow.
type KeywordResolver struct{}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true, "and": true,
	"keep": true, "only": true, "show": true, "part": true, "parts": true,
	"video": true, "clip": true, "clips": true, "scene": true, "scenes": true,
	"with": true, "where": true, "all": true, "in": true, "it": true,
	"make": true, "me": true, "please": true, "from": true, "this": true,
	"that": true, "section": true, "sections": true,
}

var excludeMarkers = []string{"remove", "without", "except", "cut out", "drop", "skip"}

var durationRe = regexp.MustCompile(`(?i)(?:under|max|at most|within|no longer than)\s+(\d+)\s*(?:s|sec|secs|seconds?)`)

var captionRe = regexp.MustCompile(`(?i)caption(?:ed)?\s+(?:with\s+)?["']([^"']+)["']`)

func (KeywordResolver) Resolve(_ context.Context, instruction string) (types.StructuredIntent, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return types.StructuredIntent{}, errors.New("instruction must not be empty")
	}

	var intent types.StructuredIntent
	lower := strings.ToLower(instruction)

	if m := durationRe.FindStringSubmatch(lower); m != nil {
		if secs, err := strconv.Atoi(m[1]); err == nil {
			intent.MaxDuration = float64(secs)
		}
		lower = durationRe.ReplaceAllString(lower, " ")
	}

	if m := captionRe.FindStringSubmatch(instruction); m != nil {
		intent.Effect = &types.EffectRequest{
			Kind:   types.OpCaption,
			Params: map[string]any{"text": m[1], "position": "bottom"},
		}
		lower = captionRe.ReplaceAllString(lower, " ")
	} else if strings.Contains(lower, "mute") {
		intent.Effect = &types.EffectRequest{Kind: types.OpMute}
		lower = strings.ReplaceAll(lower, "mute", " ")
	} else if strings.Contains(lower, "blur") {
		intent.Effect = &types.EffectRequest{
			Kind:   types.OpBlur,
			Params: map[string]any{"amount": 0.5},
		}
		lower = strings.ReplaceAll(lower, "blur", " ")
	}

	// Split include side from exclude side at the first exclusion marker.
	includePart := lower
	excludePart := ""
	for _, marker := range excludeMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 {
			includePart = lower[:idx]
			excludePart = lower[idx+len(marker):]
			break
		}
	}

	intent.Include = keywords(includePart)
	intent.Exclude = keywords(excludePart)
	return intent, nil
}

var wordRe = regexp.MustCompile(`[a-z0-9_]+`)

func keywords(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range wordRe.FindAllString(text, -1) {
		if stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
