package types

import (
	"fmt"
	"sort"
)

// ContentLabel classifies what a scene mostly contains. Labels come from the
// upstream vision/audio indexer and are treated as opaque beyond this set.
type ContentLabel string

const (
	ContentLabelPersonTalking ContentLabel = "person_talking"
	ContentLabelInterface     ContentLabel = "interface"
	ContentLabelSilence       ContentLabel = "silence"
	ContentLabelOther         ContentLabel = "other"
)

// SceneDescriptor is one timestamped entry of the scene index for a source
// video. Produced externally, read-only here.
type SceneDescriptor struct {
	StartTime float64      `json:"start_time"`
	EndTime   float64      `json:"end_time"`
	Label     ContentLabel `json:"content_label"`
	Summary   string       `json:"free_text_summary"`
	Score     float64      `json:"score,omitempty"`
}

// Duration returns the scene length in seconds.
func (s SceneDescriptor) Duration() float64 {
	return s.EndTime - s.StartTime
}

// OperationKind identifies one editing operation type.
type OperationKind string

const (
	OpTrim    OperationKind = "trim"
	OpConcat  OperationKind = "concat"
	OpOverlay OperationKind = "overlay"
	OpCrop    OperationKind = "crop"
	OpMute    OperationKind = "mute"
	OpBlur    OperationKind = "blur"
	OpZoom    OperationKind = "zoom"
	OpCaption OperationKind = "caption"
)

// TimeRange is a [Start, End] span in seconds of source time.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r TimeRange) Duration() float64 {
	return r.End - r.Start
}

// EditOperation is one typed step of an edit plan. Immutable after
// validation. DependsOn names operation IDs whose outputs this operation
// consumes; the executor will not start it before those reach ok.
type EditOperation struct {
	ID          string         `json:"id"`
	Kind        OperationKind  `json:"type"`
	SourceRange TimeRange      `json:"source_range"`
	Params      map[string]any `json:"params,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
}

// EditPlan is an ordered sequence of operations for one user request.
// Insertion order is execution order except where DependsOn says otherwise.
type EditPlan struct {
	VideoID    string          `json:"video_id"`
	Operations []EditOperation `json:"actions"`
}

// Empty reports whether the plan contains no operations.
func (p EditPlan) Empty() bool {
	return len(p.Operations) == 0
}

// TotalDuration sums the source ranges of all trim operations.
func (p EditPlan) TotalDuration() float64 {
	var total float64
	for _, op := range p.Operations {
		if op.Kind == OpTrim {
			total += op.SourceRange.Duration()
		}
	}
	return total
}

// Operation returns the operation with the given id, if present.
func (p EditPlan) Operation(id string) (EditOperation, bool) {
	for _, op := range p.Operations {
		if op.ID == id {
			return op, true
		}
	}
	return EditOperation{}, false
}

// StructuredIntent is the closed-schema intermediate between a free-form
// instruction and an edit plan. Resolution fills it; expansion consumes it.
type StructuredIntent struct {
	// Mood is a coarse theme hint ("demo", "energetic", ...). Informational;
	// matching happens on the keyword lists.
	Mood string `json:"mood,omitempty"`
	// MaxDuration bounds the total kept footage in seconds; 0 means unbounded.
	MaxDuration float64 `json:"max_duration_seconds,omitempty"`
	// Include are keywords a kept scene must overlap with.
	Include []string `json:"include_keywords"`
	// Exclude keywords disqualify a scene outright.
	Exclude []string `json:"exclude_keywords,omitempty"`
	// Effect optionally requests a post-processing operation applied to the
	// assembled cut (mute, blur, caption, zoom, crop, overlay).
	Effect *EffectRequest `json:"effect,omitempty"`
}

// EffectRequest is one requested post-processing effect with its parameters.
type EffectRequest struct {
	Kind   OperationKind  `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// CompiledCommand is the tool-ready form of one validated operation.
type CompiledCommand struct {
	Operation EditOperation     `json:"operation"`
	Template  string            `json:"command_template"`
	Args      map[string]string `json:"resolved_args"`
	// Argv is the full transcoder invocation, program first.
	Argv []string `json:"argv"`
	// OutputPath is where the operation writes its artifact.
	OutputPath string `json:"output_path"`
}

// ResolvedArgsOrdered returns the resolved args as "k=v" strings sorted by
// key, for stable logging and history records.
func (c CompiledCommand) ResolvedArgsOrdered() []string {
	out := make([]string, 0, len(c.Args))
	for k, v := range c.Args {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

// Status is the terminal (or current) state of one operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusOK || s == StatusFailed || s == StatusSkipped
}

// ExecutionResult is the outcome of one operation in one run.
type ExecutionResult struct {
	OperationID string `json:"operation_id"`
	Status      Status `json:"status"`
	Attempts    int    `json:"attempts"`
	ErrorDetail string `json:"error_detail,omitempty"`
	OutputPath  string `json:"output_path,omitempty"`
}
