package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-insight/internal/model"
)

// ErrMissingAPIKey is returned at construction time when no service
// credential is configured. A missing credential is a deployment fault and
// must never surface as a per-call failure.
var ErrMissingAPIKey = errors.New("analysis: api key is required")

const (
	defaultModel     = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 900
)

// instruction is the fixed prompt sent with every image. It pins the
// response to a single JSON object so the answer is machine-parseable
// without free-text extraction.
const instruction = `Analyze the supplied image and answer with a single JSON object only, no prose and no code fences. The object must contain exactly these fields:
"objects": array of labels for the visible objects (strings),
"peopleCount": number of people visible (integer, 0 or more),
"sceneType": a short free-text scene label such as "Indoor", "Outdoor", "Beach" or "Office",
"imageCategory": one of "Selfie", "Document", "Screenshot", "Photo", "Other",
"dominantColors": up to five dominant color tokens (hex codes or color names),
"faceEmotion": one of "Happy", "Neutral", "Sad", "Angry", "Surprised", "None" (use "None" when no face is visible),
"isSafe": boolean judgement whether the content is safe,
"authenticity": an object {"isLikelyEdited": boolean, "reason": string, "score": integer 0-100},
"ocrText": every piece of visible text transcribed, or "" when there is none.`

// Config carries the connection settings for the inference service.
type Config struct {
	APIKey    string
	BaseURL   string // optional override for OpenAI-compatible endpoints
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// Client submits images to an external multimodal inference service and
// normalizes the structured response. Analyze never fails outward: every
// internal failure yields the fixed fallback record together with a non-nil
// error the caller may log but must not escalate.
type Client struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

// New creates a Client. A missing API key fails here, not at call time.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Analyze submits the payload and returns the normalized analysis. The
// returned record is always usable: on any failure it equals the fixed
// fallback record and the error reports what went wrong.
func (c *Client) Analyze(ctx context.Context, p model.Payload) (model.AnalysisRecord, error) {
	rec, err := c.analyze(ctx, p)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("analysis failed, returning fallback record")
		return model.FallbackAnalysis(), err
	}
	return rec, nil
}

func (c *Client) analyze(ctx context.Context, p model.Payload) (model.AnalysisRecord, error) {
	if p.Data == "" {
		return model.AnalysisRecord{}, errors.New("empty payload")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: instruction,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", p.MimeType, p.Data),
						},
					},
				},
			},
		},
	})
	if err != nil {
		return model.AnalysisRecord{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.AnalysisRecord{}, errors.New("response has no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return model.AnalysisRecord{}, errors.New("response has no text content")
	}

	return parseResponse(content)
}

// wireRecord mirrors the response schema with pointer fields so a missing
// key is distinguishable from a zero value.
type wireRecord struct {
	Objects        *[]string `json:"objects"`
	PeopleCount    *int      `json:"peopleCount"`
	SceneType      *string   `json:"sceneType"`
	ImageCategory  *string   `json:"imageCategory"`
	DominantColors *[]string `json:"dominantColors"`
	FaceEmotion    *string   `json:"faceEmotion"`
	IsSafe         *bool     `json:"isSafe"`
	Authenticity   *struct {
		IsLikelyEdited *bool   `json:"isLikelyEdited"`
		Reason         *string `json:"reason"`
		Score          *int    `json:"score"`
	} `json:"authenticity"`
	OCRText *string `json:"ocrText"`
}

// parseResponse validates the raw service answer against the expected
// shape. Every field is required; any absence, unknown enum value or
// out-of-range number invalidates the whole response.
func parseResponse(content string) (model.AnalysisRecord, error) {
	content = trimCodeFence(content)

	var raw wireRecord
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return model.AnalysisRecord{}, fmt.Errorf("unmarshal response: %w", err)
	}

	switch {
	case raw.Objects == nil:
		return model.AnalysisRecord{}, missingField("objects")
	case raw.PeopleCount == nil:
		return model.AnalysisRecord{}, missingField("peopleCount")
	case raw.SceneType == nil:
		return model.AnalysisRecord{}, missingField("sceneType")
	case raw.ImageCategory == nil:
		return model.AnalysisRecord{}, missingField("imageCategory")
	case raw.DominantColors == nil:
		return model.AnalysisRecord{}, missingField("dominantColors")
	case raw.FaceEmotion == nil:
		return model.AnalysisRecord{}, missingField("faceEmotion")
	case raw.IsSafe == nil:
		return model.AnalysisRecord{}, missingField("isSafe")
	case raw.Authenticity == nil:
		return model.AnalysisRecord{}, missingField("authenticity")
	case raw.Authenticity.IsLikelyEdited == nil:
		return model.AnalysisRecord{}, missingField("authenticity.isLikelyEdited")
	case raw.Authenticity.Reason == nil:
		return model.AnalysisRecord{}, missingField("authenticity.reason")
	case raw.Authenticity.Score == nil:
		return model.AnalysisRecord{}, missingField("authenticity.score")
	case raw.OCRText == nil:
		return model.AnalysisRecord{}, missingField("ocrText")
	}

	if *raw.PeopleCount < 0 {
		return model.AnalysisRecord{}, fmt.Errorf("peopleCount is negative: %d", *raw.PeopleCount)
	}

	category := model.ImageCategory(*raw.ImageCategory)
	if !category.IsValid() {
		return model.AnalysisRecord{}, fmt.Errorf("unknown imageCategory %q", *raw.ImageCategory)
	}

	emotion := model.FaceEmotion(*raw.FaceEmotion)
	if !emotion.IsValid() {
		return model.AnalysisRecord{}, fmt.Errorf("unknown faceEmotion %q", *raw.FaceEmotion)
	}

	if *raw.Authenticity.Score < 0 || *raw.Authenticity.Score > 100 {
		return model.AnalysisRecord{}, fmt.Errorf("authenticity score out of range: %d", *raw.Authenticity.Score)
	}

	return model.AnalysisRecord{
		Objects:        normalizeTokens(*raw.Objects, len(*raw.Objects)),
		PeopleCount:    *raw.PeopleCount,
		SceneType:      strings.TrimSpace(*raw.SceneType),
		ImageCategory:  category,
		DominantColors: normalizeTokens(*raw.DominantColors, model.MaxDominantColors),
		FaceEmotion:    emotion,
		IsSafe:         *raw.IsSafe,
		Authenticity: model.Authenticity{
			IsLikelyEdited: *raw.Authenticity.IsLikelyEdited,
			Reason:         strings.TrimSpace(*raw.Authenticity.Reason),
			Score:          *raw.Authenticity.Score,
		},
		OCRText: strings.TrimSpace(*raw.OCRText),
	}, nil
}

func missingField(name string) error {
	return fmt.Errorf("response is missing required field %q", name)
}

// normalizeTokens trims the entries, drops empty ones and caps the list.
func normalizeTokens(in []string, max int) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

// trimCodeFence strips a Markdown code fence some models wrap JSON answers
// in despite the instruction not to.
func trimCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
