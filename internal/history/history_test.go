package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/clipforge/clipforge/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	results := []types.ExecutionResult{
		{OperationID: "segment_0", Status: types.StatusOK, Attempts: 1, OutputPath: "out/a.mp4"},
		{OperationID: "concat_0", Status: types.StatusFailed, Attempts: 3, ErrorDetail: "transcoder failed"},
	}
	if err := store.Append(ctx, "vid1", "keep only the demo", results); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := store.List(ctx, "vid1", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Newest first: the concat row was inserted last.
	if records[0].Result.OperationID != "concat_0" {
		t.Errorf("records[0] = %s, want concat_0", records[0].Result.OperationID)
	}
	if records[0].Result.Status != types.StatusFailed {
		t.Errorf("status = %s, want failed", records[0].Result.Status)
	}
	if records[1].Instruction != "keep only the demo" {
		t.Errorf("instruction = %q", records[1].Instruction)
	}
}

func TestListFiltersByVideo(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ok := []types.ExecutionResult{{OperationID: "segment_0", Status: types.StatusOK, Attempts: 1}}
	if err := store.Append(ctx, "vid1", "a", ok); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, "vid2", "b", ok); err != nil {
		t.Fatal(err)
	}

	records, err := store.List(ctx, "vid2", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].VideoID != "vid2" {
		t.Errorf("filter failed: %+v", records)
	}
}

func TestListEmptyStore(t *testing.T) {
	store := openTestStore(t)
	records, err := store.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records from empty store", len(records))
	}
}
