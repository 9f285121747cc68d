package config

import "time"

// Options carries every knob a single edit run needs. It is built once at
// the CLI edge and threaded explicitly; nothing reads ambient globals.
type Options struct {
	// OutputDir receives final artifacts. Never the directory of the input.
	OutputDir string
	// TempDir receives intermediate segments and logs.
	TempDir string
	// IndexDir holds externally produced scene index files (<video_id>.json).
	IndexDir string
	// SourcePath is the source media file for the run.
	SourcePath string
	// WorkerLimit bounds concurrently running transcoder processes.
	WorkerLimit int
	// MaxRetries bounds retry attempts for transient execution failures.
	MaxRetries int
	// RetryBackoff is the base delay between attempts; doubled per retry.
	RetryBackoff time.Duration
	// FallbackFull keeps the whole source as a single trim when the
	// interpreter matches nothing, instead of failing the run.
	FallbackFull bool
	// HistoryPath is the sqlite file for result history. Empty disables it.
	HistoryPath string
	Verbose     bool
}

// Defaults fills unset fields with usable values.
func (o *Options) Defaults() {
	if o.OutputDir == "" {
		o.OutputDir = "edited/videos"
	}
	if o.TempDir == "" {
		o.TempDir = "temp/clips"
	}
	if o.WorkerLimit <= 0 {
		o.WorkerLimit = 2
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
}

const (
	// Scene search results below this score are dropped when any clip
	// scores at or above it.
	MinSearchScore = 0.7

	// Caption overlay settings
	CaptionFontSize  = 24
	CaptionTextColor = "white"
	CaptionBoxColor  = "black@0.5"
	CaptionPadding   = 10

	// Final artifact codecs
	OutputVideoCodec = "libx264"
	OutputAudioCodec = "aac"
)
