// Package compile maps validated edit operations onto concrete transcoder
// invocations. The mapping is pure and deterministic: identical plans
// compile to byte-identical commands, with timestamps fixed at millisecond
// precision and output names derived from operation IDs.
package compile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/pkg/types"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// UnsupportedOperationError names an operation kind the compiler cannot map.
// Fatal for that operation, not for the whole plan.
type UnsupportedOperationError struct {
	Kind types.OperationKind
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation kind: %s", e.Kind)
}

// Compiler resolves operations against one source file and the run's
// directories. It holds no mutable state.
type Compiler struct {
	SourcePath string
	TempDir    string
	OutputDir  string
}

// New creates a compiler for one run.
func New(sourcePath, tempDir, outputDir string) *Compiler {
	return &Compiler{SourcePath: sourcePath, TempDir: tempDir, OutputDir: outputDir}
}

// CompilePlan compiles every operation of a validated plan, in plan order.
// Operations nothing depends on write final artifacts to the output
// directory; intermediate outputs land in the temp directory.
func (c *Compiler) CompilePlan(p types.EditPlan) ([]types.CompiledCommand, error) {
	consumed := map[string]bool{}
	for _, op := range p.Operations {
		for _, dep := range op.DependsOn {
			consumed[dep] = true
		}
	}

	outputs := map[string]string{}
	cmds := make([]types.CompiledCommand, 0, len(p.Operations))
	for _, op := range p.Operations {
		outPath := c.outputPath(op, !consumed[op.ID])
		outputs[op.ID] = outPath

		cmd, err := c.compile(op, outputs, outPath)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Compile maps a single dependency-free operation. Exposed for one-off use;
// CompilePlan is the usual entry.
func (c *Compiler) Compile(op types.EditOperation) (types.CompiledCommand, error) {
	return c.compile(op, map[string]string{}, c.outputPath(op, true))
}

func (c *Compiler) outputPath(op types.EditOperation, final bool) string {
	if final {
		return filepath.Join(c.OutputDir, fmt.Sprintf("output_%s.mp4", op.ID))
	}
	return filepath.Join(c.TempDir, fmt.Sprintf("%s.mp4", op.ID))
}

// inputPath returns what the operation reads: the source file for
// dependency-free operations, the dependency's output otherwise.
func (c *Compiler) inputPath(op types.EditOperation, outputs map[string]string) string {
	if len(op.DependsOn) == 0 {
		return c.SourcePath
	}
	return outputs[op.DependsOn[0]]
}

// argv flattens a built stream graph into the full invocation, program
// first. KwArgs are emitted in sorted key order, so identical operations
// always flatten identically.
func argv(stream *ffmpeg.Stream) []string {
	return append([]string{"ffmpeg"}, stream.GetArgs()...)
}

func (c *Compiler) compile(op types.EditOperation, outputs map[string]string, outPath string) (types.CompiledCommand, error) {
	switch op.Kind {
	case types.OpTrim:
		return c.compileTrim(op, outPath), nil
	case types.OpConcat:
		return c.compileConcat(op, outputs, outPath), nil
	case types.OpMute:
		return c.compileAudioFilter(op, outputs, outPath, "volume=0"), nil
	case types.OpBlur:
		amount := floatParam(op.Params, "amount", 0.5)
		filter := fmt.Sprintf("boxblur=%s", seconds(amount*10))
		return c.compileVideoFilter(op, outputs, outPath, filter), nil
	case types.OpZoom:
		scale := floatParam(op.Params, "scale", 1.0)
		filter := fmt.Sprintf("scale=iw*%[1]s:ih*%[1]s,crop=iw/%[1]s:ih/%[1]s", seconds(scale))
		return c.compileVideoFilter(op, outputs, outPath, filter), nil
	case types.OpCrop:
		w := floatParam(op.Params, "width", 0)
		h := floatParam(op.Params, "height", 0)
		x := floatParam(op.Params, "x", 0)
		y := floatParam(op.Params, "y", 0)
		filter := fmt.Sprintf("crop=%d:%d:%d:%d", int(w), int(h), int(x), int(y))
		return c.compileVideoFilter(op, outputs, outPath, filter), nil
	case types.OpCaption:
		text, _ := op.Params["text"].(string)
		position, _ := op.Params["position"].(string)
		return c.compileVideoFilter(op, outputs, outPath, drawtextFilter(text, position)), nil
	case types.OpOverlay:
		return c.compileOverlay(op, outputs, outPath), nil
	default:
		return types.CompiledCommand{}, &UnsupportedOperationError{Kind: op.Kind}
	}
}

func (c *Compiler) compileTrim(op types.EditOperation, outPath string) types.CompiledCommand {
	start := seconds(op.SourceRange.Start)
	end := seconds(op.SourceRange.End)
	stream := ffmpeg.Input(c.SourcePath, ffmpeg.KwArgs{
		"ss": start,
		"to": end,
	}).Output(outPath, ffmpeg.KwArgs{
		"vf":  "setpts=PTS-STARTPTS",
		"af":  "asetpts=PTS-STARTPTS",
		"c:v": config.OutputVideoCodec,
		"c:a": config.OutputAudioCodec,
	}).OverWriteOutput()
	return types.CompiledCommand{
		Operation: op,
		Template:  "ffmpeg -ss {start} -to {end} -i {input} -vf setpts=PTS-STARTPTS -af asetpts=PTS-STARTPTS -c:v {vcodec} -c:a {acodec} -y {output}",
		Args: map[string]string{
			"start":  start,
			"end":    end,
			"input":  c.SourcePath,
			"output": outPath,
		},
		Argv:       argv(stream),
		OutputPath: outPath,
	}
}

func (c *Compiler) compileConcat(op types.EditOperation, outputs map[string]string, outPath string) types.CompiledCommand {
	inputs := make([]*ffmpeg.Stream, 0, len(op.DependsOn))
	var labels strings.Builder
	args := map[string]string{"output": outPath}
	for i, dep := range op.DependsOn {
		in := outputs[dep]
		inputs = append(inputs, ffmpeg.Input(in))
		labels.WriteString(fmt.Sprintf("[%d:v][%d:a]", i, i))
		args[fmt.Sprintf("input_%d", i)] = in
	}
	filter := fmt.Sprintf("%sconcat=n=%d:v=1:a=1[v][a]", labels.String(), len(op.DependsOn))
	args["filter"] = filter
	stream := ffmpeg.Output(inputs, outPath, ffmpeg.KwArgs{
		"filter_complex": filter,
		"map":            []string{"[v]", "[a]"},
		"c:v":            config.OutputVideoCodec,
		"c:a":            config.OutputAudioCodec,
	}).OverWriteOutput()
	return types.CompiledCommand{
		Operation:  op,
		Template:   "ffmpeg {inputs} -filter_complex {filter} -map [v] -map [a] -c:v {vcodec} -c:a {acodec} -y {output}",
		Args:       args,
		Argv:       argv(stream),
		OutputPath: outPath,
	}
}

func (c *Compiler) compileVideoFilter(op types.EditOperation, outputs map[string]string, outPath, filter string) types.CompiledCommand {
	in := c.inputPath(op, outputs)
	stream := ffmpeg.Input(in).Output(outPath, ffmpeg.KwArgs{
		"vf":  filter,
		"c:v": config.OutputVideoCodec,
		"c:a": config.OutputAudioCodec,
	}).OverWriteOutput()
	return types.CompiledCommand{
		Operation:  op,
		Template:   "ffmpeg -i {input} -vf {filter} -c:v {vcodec} -c:a {acodec} -y {output}",
		Args:       map[string]string{"input": in, "filter": filter, "output": outPath},
		Argv:       argv(stream),
		OutputPath: outPath,
	}
}

func (c *Compiler) compileAudioFilter(op types.EditOperation, outputs map[string]string, outPath, filter string) types.CompiledCommand {
	in := c.inputPath(op, outputs)
	stream := ffmpeg.Input(in).Output(outPath, ffmpeg.KwArgs{
		"af":  filter,
		"c:v": "copy",
		"c:a": config.OutputAudioCodec,
	}).OverWriteOutput()
	return types.CompiledCommand{
		Operation:  op,
		Template:   "ffmpeg -i {input} -af {filter} -c:v copy -c:a {acodec} -y {output}",
		Args:       map[string]string{"input": in, "filter": filter, "output": outPath},
		Argv:       argv(stream),
		OutputPath: outPath,
	}
}

func (c *Compiler) compileOverlay(op types.EditOperation, outputs map[string]string, outPath string) types.CompiledCommand {
	in := c.inputPath(op, outputs)
	overlayPath, _ := op.Params["path"].(string)
	x := int(floatParam(op.Params, "x", 0))
	y := int(floatParam(op.Params, "y", 0))
	filter := fmt.Sprintf("overlay=%d:%d", x, y)
	stream := ffmpeg.Output([]*ffmpeg.Stream{
		ffmpeg.Input(in),
		ffmpeg.Input(overlayPath),
	}, outPath, ffmpeg.KwArgs{
		"filter_complex": filter,
		"c:v":            config.OutputVideoCodec,
		"c:a":            config.OutputAudioCodec,
	}).OverWriteOutput()
	return types.CompiledCommand{
		Operation: op,
		Template:  "ffmpeg -i {input} -i {overlay} -filter_complex {filter} -c:v {vcodec} -c:a {acodec} -y {output}",
		Args: map[string]string{
			"input": in, "overlay": overlayPath, "filter": filter, "output": outPath,
		},
		Argv:       argv(stream),
		OutputPath: outPath,
	}
}

func drawtextFilter(text, position string) string {
	// Single quotes would end the drawtext text argument early.
	escaped := strings.ReplaceAll(text, "'", `'\''`)
	y := fmt.Sprintf("h-th-%d", config.CaptionPadding)
	if position == "top" {
		y = fmt.Sprintf("%d", config.CaptionPadding)
	}
	return fmt.Sprintf(
		"drawtext=text='%s':fontsize=%d:fontcolor=%s:box=1:boxcolor=%s:x=(w-text_w)/2:y=%s",
		escaped, config.CaptionFontSize, config.CaptionTextColor, config.CaptionBoxColor, y,
	)
}

// seconds formats a number at millisecond precision for reproducible output.
func seconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func floatParam(params map[string]any, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
