package scene

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/clipforge/pkg/types"
)

func TestCoverageMergesOverlapsAndAdjacency(t *testing.T) {
	scenes := []types.SceneDescriptor{
		{StartTime: 0, EndTime: 10},
		{StartTime: 10, EndTime: 20},
		{StartTime: 30, EndTime: 40},
		{StartTime: 35, EndTime: 45},
	}
	got := Coverage(scenes)
	want := []types.TimeRange{{Start: 0, End: 20}, {Start: 30, End: 45}}
	if len(got) != len(want) {
		t.Fatalf("coverage = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("coverage[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCoverageIgnoresDegenerateScenes(t *testing.T) {
	scenes := []types.SceneDescriptor{
		{StartTime: 5, EndTime: 5},
		{StartTime: 0, EndTime: 10},
	}
	got := Coverage(scenes)
	if len(got) != 1 || got[0] != (types.TimeRange{Start: 0, End: 10}) {
		t.Errorf("coverage = %+v", got)
	}
}

func TestCovered(t *testing.T) {
	coverage := []types.TimeRange{{Start: 0, End: 20}, {Start: 30, End: 45}}
	tests := []struct {
		name string
		r    types.TimeRange
		want bool
	}{
		{"inside first", types.TimeRange{Start: 5, End: 15}, true},
		{"exact interval", types.TimeRange{Start: 30, End: 45}, true},
		{"spans gap", types.TimeRange{Start: 15, End: 35}, false},
		{"outside", types.TimeRange{Start: 50, End: 60}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Covered(coverage, tt.r); got != tt.want {
				t.Errorf("Covered(%+v) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestFileSourceReadsAndSorts(t *testing.T) {
	dir := t.TempDir()
	index := `[
		{"start_time": 10, "end_time": 20, "content_label": "interface", "free_text_summary": "demo"},
		{"start_time": 0, "end_time": 10, "content_label": "person_talking", "free_text_summary": "intro"}
	]`
	if err := os.WriteFile(filepath.Join(dir, "vid1.json"), []byte(index), 0644); err != nil {
		t.Fatal(err)
	}

	scenes, err := NewFileSource(dir).Scenes(context.Background(), "vid1")
	if err != nil {
		t.Fatalf("Scenes: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes, want 2", len(scenes))
	}
	if scenes[0].StartTime != 0 || scenes[0].Label != types.ContentLabelPersonTalking {
		t.Errorf("scenes not sorted by start: %+v", scenes)
	}
}

func TestFileSourceMissingIndex(t *testing.T) {
	if _, err := NewFileSource(t.TempDir()).Scenes(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for missing index file")
	}
}

func TestParseSearchResponseFlat(t *testing.T) {
	payload := `{"data": [
		{"start": 12.5, "end": 20.0, "score": 0.9, "metadata": {"text": "product demo"}},
		{"start": 40.0, "end": 50.0, "score": 0.4, "metadata": {"text": "credits"}}
	]}`
	scenes := parseSearchResponse([]byte(payload))
	// One clip clears the threshold, so low scorers are dropped.
	if len(scenes) != 1 {
		t.Fatalf("got %d scenes, want 1: %+v", len(scenes), scenes)
	}
	if scenes[0].StartTime != 12.5 || scenes[0].Summary != "product demo" {
		t.Errorf("unexpected scene: %+v", scenes[0])
	}
}

func TestParseSearchResponseGrouped(t *testing.T) {
	payload := `{"data": [
		{"id": "vid1", "clips": [
			{"start": 0, "end": 5, "score": 0.8, "metadata": {"text": "one", "content_label": "interface"}},
			{"start": 5, "end": 9, "score": 0.75, "metadata": {"text": "two"}}
		]}
	]}`
	scenes := parseSearchResponse([]byte(payload))
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes, want 2", len(scenes))
	}
	if scenes[0].Label != types.ContentLabelInterface {
		t.Errorf("label = %s, want interface", scenes[0].Label)
	}
	if scenes[1].Label != types.ContentLabelOther {
		t.Errorf("missing label should default to other, got %s", scenes[1].Label)
	}
}

func TestParseSearchResponseAllLowScores(t *testing.T) {
	payload := `{"data": [
		{"start": 0, "end": 5, "score": 0.3},
		{"start": 5, "end": 9, "score": 0.2}
	]}`
	scenes := parseSearchResponse([]byte(payload))
	// Nothing clears the threshold, so everything is kept.
	if len(scenes) != 2 {
		t.Fatalf("got %d scenes, want 2: %+v", len(scenes), scenes)
	}
}
