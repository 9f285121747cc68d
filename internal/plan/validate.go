// Package plan validates edit plans against the scene index before any
// compilation happens. Violations are collected and returned whole; nothing
// is silently dropped.
package plan

import (
	"fmt"
	"strings"

	"github.com/clipforge/clipforge/internal/scene"
	"github.com/clipforge/clipforge/pkg/types"
)

// Violation describes one check an operation failed.
type Violation struct {
	Index       int    `json:"operation_index"`
	OperationID string `json:"operation_id"`
	Reason      string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("operation %d (%s): %s", v.Index, v.OperationID, v.Reason)
}

// Violations is the full set of failed checks for a plan. It implements
// error so callers can surface it directly or re-prompt the interpreter.
type Violations []Violation

func (vs Violations) Error() string {
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.String()
	}
	return "plan validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks every operation of the plan against the scene index and
// the per-kind parameter domains. A nil return means the plan is valid.
//
// Operations with dependencies consume the outputs of prior operations, not
// source footage, so the coverage check applies only to dependency-free
// operations.
func Validate(p types.EditPlan, scenes []types.SceneDescriptor) Violations {
	var vs Violations
	coverage := scene.Coverage(scenes)
	seen := map[string]int{}

	for i, op := range p.Operations {
		if op.ID == "" {
			vs = append(vs, Violation{i, op.ID, "missing operation id"})
		}
		if prev, dup := seen[op.ID]; dup {
			vs = append(vs, Violation{i, op.ID, fmt.Sprintf("duplicate id, first used by operation %d", prev)})
		}
		seen[op.ID] = i

		if op.SourceRange.Start >= op.SourceRange.End {
			vs = append(vs, Violation{i, op.ID, fmt.Sprintf(
				"start %.3f must be before end %.3f", op.SourceRange.Start, op.SourceRange.End)})
		}
		if op.SourceRange.Start < 0 {
			vs = append(vs, Violation{i, op.ID, "negative start time"})
		}

		if len(op.DependsOn) == 0 && !scene.Covered(coverage, op.SourceRange) {
			vs = append(vs, Violation{i, op.ID, fmt.Sprintf(
				"source range [%.3f, %.3f] outside scene coverage", op.SourceRange.Start, op.SourceRange.End)})
		}

		for _, dep := range op.DependsOn {
			if idx, ok := seen[dep]; !ok || idx >= i {
				vs = append(vs, Violation{i, op.ID, fmt.Sprintf("depends on unknown or later operation %q", dep)})
			}
		}

		vs = append(vs, checkParams(i, op)...)

		if op.Kind == types.OpConcat {
			vs = append(vs, checkConcat(i, op, p)...)
		}
	}

	if p.TotalDuration() < 0 {
		vs = append(vs, Violation{-1, "", "total plan duration is negative"})
	}

	if len(vs) == 0 {
		return nil
	}
	return vs
}

// checkParams enforces the declared parameter domain for each kind.
func checkParams(i int, op types.EditOperation) Violations {
	var vs Violations
	switch op.Kind {
	case types.OpTrim, types.OpConcat, types.OpMute:
		// No parameters beyond the range.
	case types.OpBlur:
		amount, ok := floatParam(op.Params, "amount")
		if ok && (amount < 0 || amount > 1) {
			vs = append(vs, Violation{i, op.ID, fmt.Sprintf("blur amount %.3f outside [0, 1]", amount)})
		}
	case types.OpZoom:
		if scale, ok := floatParam(op.Params, "scale"); ok && scale <= 0 {
			vs = append(vs, Violation{i, op.ID, fmt.Sprintf("zoom scale %.3f must be positive", scale)})
		}
	case types.OpCrop:
		for _, key := range []string{"width", "height"} {
			if v, ok := floatParam(op.Params, key); !ok || v <= 0 {
				vs = append(vs, Violation{i, op.ID, fmt.Sprintf("crop %s must be a positive number", key)})
			}
		}
	case types.OpCaption:
		if text, _ := op.Params["text"].(string); strings.TrimSpace(text) == "" {
			vs = append(vs, Violation{i, op.ID, "caption text must not be empty"})
		}
	case types.OpOverlay:
		if path, _ := op.Params["path"].(string); strings.TrimSpace(path) == "" {
			vs = append(vs, Violation{i, op.ID, "overlay path must not be empty"})
		}
	default:
		vs = append(vs, Violation{i, op.ID, fmt.Sprintf("unknown operation kind %q", op.Kind)})
	}
	return vs
}

// checkConcat rejects degenerate concatenations: duplicate inputs or
// identical source ranges among the referenced segments.
func checkConcat(i int, op types.EditOperation, p types.EditPlan) Violations {
	var vs Violations
	if len(op.DependsOn) < 2 {
		vs = append(vs, Violation{i, op.ID, "concat needs at least two input segments"})
		return vs
	}

	seenRanges := map[types.TimeRange]string{}
	for _, dep := range op.DependsOn {
		depOp, ok := p.Operation(dep)
		if !ok {
			continue // already reported by the dependency check
		}
		if other, dup := seenRanges[depOp.SourceRange]; dup {
			vs = append(vs, Violation{i, op.ID, fmt.Sprintf(
				"segments %q and %q reference the identical source range", other, dep)})
		}
		seenRanges[depOp.SourceRange] = dep
	}
	return vs
}

func floatParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
