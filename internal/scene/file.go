package scene

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/pkg/types"
	"github.com/pkg/errors"
)

// FileSource reads scene indexes from <dir>/<video_id>.json. The files are
// written by the upstream indexer; this side never mutates them.
type FileSource struct {
	dir string
}

// NewFileSource creates a source over the given index directory.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (f *FileSource) Scenes(_ context.Context, videoID string) ([]types.SceneDescriptor, error) {
	path := filepath.Join(f.dir, videoID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scene index for %s", videoID)
	}

	var scenes []types.SceneDescriptor
	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, errors.Wrapf(err, "invalid scene index %s", path)
	}

	SortScenes(scenes)
	return scenes, nil
}
