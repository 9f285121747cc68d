package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/pkg/types"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// SearchClient queries a hosted video-search API for clips matching a text
// query and exposes the results as scene descriptors. The API groups results
// by clip and scores each one; clips below config.MinSearchScore are dropped
// whenever at least one clip clears it.
type SearchClient struct {
	baseURL string
	indexID string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewSearchClient builds a client for the given API endpoint and index.
func NewSearchClient(baseURL, indexID, apiKey string) *SearchClient {
	return &SearchClient{
		baseURL: baseURL,
		indexID: indexID,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

type searchRequest struct {
	IndexID    string   `json:"index_id"`
	QueryText  string   `json:"query_text"`
	Options    []string `json:"options"`
	GroupBy    string   `json:"group_by"`
	Operator   string   `json:"operator"`
	PageLimit  int      `json:"page_limit"`
	SortOption string   `json:"sort_option"`
	VideoID    string   `json:"video_id,omitempty"`
}

// Search returns clips for the query, restricted to videoID when non-empty.
func (c *SearchClient) Search(ctx context.Context, videoID, query string) ([]types.SceneDescriptor, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	body, err := json.Marshal(searchRequest{
		IndexID:    c.indexID,
		QueryText:  query,
		Options:    []string{"visual", "audio"},
		GroupBy:    "clip",
		Operator:   "or",
		PageLimit:  5,
		SortOption: "score",
		VideoID:    videoID,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "search request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, payload)
	}

	scenes := parseSearchResponse(payload)
	SortScenes(scenes)
	return scenes, nil
}

// QuerySource adapts a SearchClient into a Source by searching with a fixed
// query text, so the user's instruction doubles as the search query.
type QuerySource struct {
	Client *SearchClient
	Query  string
}

func (q QuerySource) Scenes(ctx context.Context, videoID string) ([]types.SceneDescriptor, error) {
	return q.Client.Search(ctx, videoID, q.Query)
}

// parseSearchResponse extracts clips from the API payload. Results arrive
// either flat or grouped per video, so both shapes are walked.
func parseSearchResponse(payload []byte) []types.SceneDescriptor {
	var scenes []types.SceneDescriptor
	var highest float64

	appendClip := func(clip gjson.Result) {
		s := types.SceneDescriptor{
			StartTime: clip.Get("start").Float(),
			EndTime:   clip.Get("end").Float(),
			Label:     types.ContentLabelOther,
			Summary:   clip.Get("metadata.text").String(),
			Score:     clip.Get("score").Float(),
		}
		if label := clip.Get("metadata.content_label").String(); label != "" {
			s.Label = types.ContentLabel(label)
		}
		if s.Score > highest {
			highest = s.Score
		}
		scenes = append(scenes, s)
	}

	gjson.GetBytes(payload, "data").ForEach(func(_, item gjson.Result) bool {
		if clips := item.Get("clips"); clips.Exists() {
			clips.ForEach(func(_, clip gjson.Result) bool {
				appendClip(clip)
				return true
			})
		} else {
			appendClip(item)
		}
		return true
	})

	if highest >= config.MinSearchScore {
		kept := scenes[:0]
		for _, s := range scenes {
			if s.Score >= config.MinSearchScore {
				kept = append(kept, s)
			}
		}
		scenes = kept
	}
	return scenes
}
