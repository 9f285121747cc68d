package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clipforge/clipforge/pkg/types"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const defaultIntentModel = "gpt-4.1-mini"

const intentSystemPrompt = "You are a video editing assistant. Translate the " +
	"user's editing request into the structured intent JSON schema. Extract " +
	"include/exclude keywords describing the content to keep or drop, an " +
	"optional duration bound in seconds, an optional mood, and at most one " +
	"post-processing effect (mute, blur, caption, zoom, crop, overlay). " +
	"Return only JSON."

// LLMResolver resolves instructions through an OpenAI-compatible chat
// completion endpoint with a strict JSON-schema response format. A malformed
// or schema-violating response is retried exactly once before surfacing
// ErrInterpretationFailed.
type LLMResolver struct {
	client  openai.Client
	model   string
	limiter *rate.Limiter
}

// NewLLMResolver builds a resolver. baseURL may be empty for the default
// endpoint; model falls back to a small default.
func NewLLMResolver(apiKey, baseURL, model string) *LLMResolver {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if strings.TrimSpace(model) == "" {
		model = defaultIntentModel
	}
	return &LLMResolver{
		client:  openai.NewClient(opts...),
		model:   model,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (r *LLMResolver) Resolve(ctx context.Context, instruction string) (types.StructuredIntent, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return types.StructuredIntent{}, errors.New("instruction must not be empty")
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		intent, err := r.resolveOnce(ctx, instruction)
		if err == nil {
			return intent, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return types.StructuredIntent{}, errors.WithStack(ctx.Err())
		}
	}
	return types.StructuredIntent{}, errors.Wrap(ErrInterpretationFailed, lastErr.Error())
}

func (r *LLMResolver) resolveOnce(ctx context.Context, instruction string) (types.StructuredIntent, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return types.StructuredIntent{}, errors.WithStack(err)
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(intentSystemPrompt),
			openai.UserMessage(instruction),
		},
		Model:       r.model,
		Temperature: openai.Float(0.2),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "structured_intent",
					Strict: openai.Bool(true),
					Schema: intentSchema(),
				},
			},
		},
	}

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil && shouldFallbackJSONMode(err) {
		// Some gateways only support plain JSON mode; the parse below still
		// enforces the schema.
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
		resp, err = r.client.Chat.Completions.New(ctx, params)
	}
	if err != nil {
		return types.StructuredIntent{}, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return types.StructuredIntent{}, errors.New("model returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.Trim(raw, "` \n")
	if raw == "" {
		return types.StructuredIntent{}, errors.New("model returned empty content")
	}

	return parseIntent(raw)
}

func parseIntent(raw string) (types.StructuredIntent, error) {
	var intent types.StructuredIntent
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&intent); err != nil {
		return types.StructuredIntent{}, errors.Wrap(err, "malformed intent response")
	}
	if intent.MaxDuration < 0 {
		return types.StructuredIntent{}, errors.New("negative duration bound in intent response")
	}
	if intent.Effect != nil {
		switch intent.Effect.Kind {
		case types.OpMute, types.OpBlur, types.OpCaption, types.OpZoom, types.OpCrop, types.OpOverlay:
		default:
			return types.StructuredIntent{}, fmt.Errorf("unknown effect kind in intent response: %s", intent.Effect.Kind)
		}
	}
	return intent, nil
}

func shouldFallbackJSONMode(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "json_schema") ||
		strings.Contains(msg, "response_format") ||
		(strings.Contains(msg, "unsupported") && strings.Contains(msg, "schema"))
}

func intentSchema() map[string]interface{} {
	keywordArray := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"include_keywords"},
		"properties": map[string]interface{}{
			"mood":                 map[string]interface{}{"type": "string"},
			"max_duration_seconds": map[string]interface{}{"type": "number"},
			"include_keywords":     keywordArray,
			"exclude_keywords":     keywordArray,
			"effect": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"type"},
				"properties": map[string]interface{}{
					"type": map[string]interface{}{
						"type": "string",
						"enum": []string{"mute", "blur", "caption", "zoom", "crop", "overlay"},
					},
					"params": map[string]interface{}{"type": "object"},
				},
			},
		},
	}
}
