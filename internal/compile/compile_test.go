package compile

import (
	"reflect"
	"strings"
	"testing"

	"github.com/clipforge/clipforge/pkg/types"
	"github.com/pkg/errors"
)

func newTestCompiler() *Compiler {
	return New("input.mp4", "temp", "out")
}

func trimOp(id string, start, end float64) types.EditOperation {
	return types.EditOperation{
		ID:          id,
		Kind:        types.OpTrim,
		SourceRange: types.TimeRange{Start: start, End: end},
	}
}

func TestCompileTrimMillisecondPrecision(t *testing.T) {
	cmd, err := newTestCompiler().Compile(trimOp("segment_0", 10, 20))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if cmd.Args["start"] != "10.000" || cmd.Args["end"] != "20.000" {
		t.Errorf("timestamps = %s..%s, want 10.000..20.000", cmd.Args["start"], cmd.Args["end"])
	}
	joined := strings.Join(cmd.Argv, " ")
	// Seek options are input options: they must precede -i so ffmpeg seeks
	// before decoding.
	if !strings.Contains(joined, "-ss 10.000 -to 20.000 -i input.mp4") {
		t.Errorf("argv missing input seek options: %s", joined)
	}
	if cmd.OutputPath == "input.mp4" {
		t.Error("trim must not write over the source input")
	}
}

func TestCompileArgvFromStreamGraph(t *testing.T) {
	cmd, err := newTestCompiler().Compile(trimOp("segment_0", 10, 20))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if cmd.Argv[0] != "ffmpeg" {
		t.Fatalf("argv[0] = %s, want ffmpeg", cmd.Argv[0])
	}
	var hasOverwrite, hasOutput bool
	for _, a := range cmd.Argv {
		if a == "-y" {
			hasOverwrite = true
		}
		if a == cmd.OutputPath {
			hasOutput = true
		}
	}
	if !hasOverwrite {
		t.Error("argv missing -y overwrite flag")
	}
	if !hasOutput {
		t.Errorf("argv missing output path %s: %v", cmd.OutputPath, cmd.Argv)
	}
}

func TestCompilePlanDeterministic(t *testing.T) {
	p := types.EditPlan{
		VideoID: "vid1",
		Operations: []types.EditOperation{
			trimOp("segment_0", 1.23456, 5),
			trimOp("segment_1", 10, 15.5),
			{
				ID:          "concat_0",
				Kind:        types.OpConcat,
				SourceRange: types.TimeRange{Start: 0, End: 9.26544},
				DependsOn:   []string{"segment_0", "segment_1"},
			},
		},
	}
	c := newTestCompiler()
	first, err := c.CompilePlan(p)
	if err != nil {
		t.Fatalf("CompilePlan: %v", err)
	}
	second, err := c.CompilePlan(p)
	if err != nil {
		t.Fatalf("CompilePlan: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("recompiling an identical plan produced different commands")
	}
	if len(first) != len(p.Operations) {
		t.Errorf("got %d commands, want exactly one per operation", len(first))
	}
}

func TestCompilePlanRoutesIntermediateAndFinalOutputs(t *testing.T) {
	p := types.EditPlan{
		Operations: []types.EditOperation{
			trimOp("segment_0", 0, 5),
			trimOp("segment_1", 10, 15),
			{
				ID:          "concat_0",
				Kind:        types.OpConcat,
				SourceRange: types.TimeRange{Start: 0, End: 10},
				DependsOn:   []string{"segment_0", "segment_1"},
			},
		},
	}
	cmds, err := newTestCompiler().CompilePlan(p)
	if err != nil {
		t.Fatalf("CompilePlan: %v", err)
	}
	if !strings.HasPrefix(cmds[0].OutputPath, "temp") || !strings.HasPrefix(cmds[1].OutputPath, "temp") {
		t.Errorf("consumed trims should land in the temp dir: %s, %s", cmds[0].OutputPath, cmds[1].OutputPath)
	}
	if !strings.HasPrefix(cmds[2].OutputPath, "out") {
		t.Errorf("final concat should land in the output dir: %s", cmds[2].OutputPath)
	}

	// Concat consumes the trim outputs in dependency order.
	joined := strings.Join(cmds[2].Argv, " ")
	if !strings.Contains(joined, cmds[0].OutputPath) || !strings.Contains(joined, cmds[1].OutputPath) {
		t.Errorf("concat argv missing segment inputs: %s", joined)
	}
	if !strings.Contains(joined, "concat=n=2:v=1:a=1") {
		t.Errorf("concat filter malformed: %s", joined)
	}
	if !strings.Contains(joined, "-map [v]") || !strings.Contains(joined, "-map [a]") {
		t.Errorf("concat must map both filter outputs: %s", joined)
	}
}

func TestCompileUnsupportedKind(t *testing.T) {
	op := types.EditOperation{
		ID:          "explode_0",
		Kind:        types.OperationKind("explode"),
		SourceRange: types.TimeRange{Start: 0, End: 1},
	}
	_, err := newTestCompiler().Compile(op)
	var ue *UnsupportedOperationError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UnsupportedOperationError", err)
	}
	if !strings.Contains(err.Error(), "explode") {
		t.Errorf("error should name the kind: %v", err)
	}
}

func TestCompileEffects(t *testing.T) {
	tests := []struct {
		name     string
		op       types.EditOperation
		wantArgv string
	}{
		{
			name: "mute",
			op: types.EditOperation{
				ID: "mute_0", Kind: types.OpMute,
				SourceRange: types.TimeRange{Start: 0, End: 10},
			},
			wantArgv: "volume=0",
		},
		{
			name: "blur amount scales radius",
			op: types.EditOperation{
				ID: "blur_0", Kind: types.OpBlur,
				SourceRange: types.TimeRange{Start: 0, End: 10},
				Params:      map[string]any{"amount": 0.5},
			},
			wantArgv: "boxblur=5.000",
		},
		{
			name: "zoom",
			op: types.EditOperation{
				ID: "zoom_0", Kind: types.OpZoom,
				SourceRange: types.TimeRange{Start: 0, End: 10},
				Params:      map[string]any{"scale": 1.5},
			},
			wantArgv: "scale=iw*1.500:ih*1.500,crop=iw/1.500:ih/1.500",
		},
		{
			name: "crop",
			op: types.EditOperation{
				ID: "crop_0", Kind: types.OpCrop,
				SourceRange: types.TimeRange{Start: 0, End: 10},
				Params:      map[string]any{"width": 640.0, "height": 480.0, "x": 10.0, "y": 20.0},
			},
			wantArgv: "crop=640:480:10:20",
		},
		{
			name: "caption bottom",
			op: types.EditOperation{
				ID: "caption_0", Kind: types.OpCaption,
				SourceRange: types.TimeRange{Start: 0, End: 10},
				Params:      map[string]any{"text": "Hello", "position": "bottom"},
			},
			wantArgv: "drawtext=text='Hello'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := newTestCompiler().Compile(tt.op)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			joined := strings.Join(cmd.Argv, " ")
			if !strings.Contains(joined, tt.wantArgv) {
				t.Errorf("argv = %s, want substring %q", joined, tt.wantArgv)
			}
		})
	}
}

func TestCompileCaptionEscapesQuotes(t *testing.T) {
	op := types.EditOperation{
		ID: "caption_0", Kind: types.OpCaption,
		SourceRange: types.TimeRange{Start: 0, End: 10},
		Params:      map[string]any{"text": "it's live"},
	}
	cmd, err := newTestCompiler().Compile(op)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if strings.Contains(cmd.Args["filter"], "'it's") {
		t.Errorf("unescaped quote in filter: %s", cmd.Args["filter"])
	}
}

func TestResolvedArgsOrderedStable(t *testing.T) {
	cmd, err := newTestCompiler().Compile(trimOp("segment_0", 0, 1))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	first := cmd.ResolvedArgsOrdered()
	second := cmd.ResolvedArgsOrdered()
	if !reflect.DeepEqual(first, second) {
		t.Error("resolved args ordering not stable")
	}
}
