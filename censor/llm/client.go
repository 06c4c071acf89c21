package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aiocensor/aiocensor/censor"
)

const Provider = "llm"

type Config struct {
	// OpenAI-compatible API root, eg "https://api.openai.com/v1"
	BaseURL string
	APIKey  string
	Model   string

	Retry  censor.RetryPolicy
	Caller censor.CallerOptions
	Client *http.Client
}

// Detector classifies content with an OpenAI-compatible chat completion
// endpoint. The model is prompted to answer with a <pass>, <block> or
// <review> tag; the raw answer becomes the verdict reason.
type Detector struct {
	endpoint string
	apiKey   string
	model    string
	retry    censor.RetryPolicy
	caller   *censor.Caller
}

var _ censor.Detector = (*Detector)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func New(cfg Config) (*Detector, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, censor.Errorf(censor.ErrInvalidInput, Provider, "base url and model are required")
	}
	cfg.Retry.Provider = Provider
	return &Detector{
		endpoint: strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		retry:    cfg.Retry,
		caller:   censor.NewCaller(Provider, cfg.Client, cfg.Caller),
	}, nil
}

// DetectText sends the whole text in one request; there is no chunking.
func (d *Detector) DetectText(ctx context.Context, text string) (censor.Verdict, error) {
	if text == "" {
		return censor.PassVerdict(), nil
	}
	return d.complete(ctx, []chatMessage{
		{Role: "system", Content: TextSystemPrompt},
		{Role: "user", Content: textUserPrompt(text)},
	})
}

func (d *Detector) DetectImage(ctx context.Context, image string) (censor.Verdict, error) {
	var url string
	switch {
	case censor.IsURL(image):
		url = image
	case censor.IsInlineImage(image):
		payload, format, err := censor.DecodeInlineImage(Provider, image)
		if err != nil {
			return censor.Verdict{}, err
		}
		url = censor.DataURI(format, payload)
	default:
		return censor.Verdict{}, censor.Errorf(censor.ErrInvalidInput, Provider, "image must be an http(s) URL or inline payload")
	}

	return d.complete(ctx, []chatMessage{
		{Role: "system", Content: []contentPart{{Type: "text", Text: ImageSystemPrompt}}},
		{Role: "user", Content: []contentPart{
			{Type: "image_url", ImageURL: &imageURL{URL: url}},
			{Type: "text", Text: imageUserText},
		}},
	})
}

func (d *Detector) Close() error {
	return d.caller.Close()
}

func (d *Detector) complete(ctx context.Context, messages []chatMessage) (censor.Verdict, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:       d.model,
		Messages:    messages,
		Stream:      false,
		Temperature: 0,
	})
	if err != nil {
		return censor.Verdict{}, censor.Wrap(censor.ErrInvalidInput, Provider, "encoding request", err)
	}

	return censor.Retry(ctx, d.retry, func(ctx context.Context) (censor.Verdict, error) {
		body, err := d.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(reqBody))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+d.apiKey)
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		})
		if err != nil {
			return censor.Verdict{}, err
		}

		var resp chatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return censor.Verdict{}, censor.Wrap(censor.ErrService, Provider, "decoding response", err)
		}
		if len(resp.Choices) == 0 {
			return censor.Verdict{}, censor.Errorf(censor.ErrService, Provider, "response has no choices")
		}
		answer := resp.Choices[0].Message.Content
		return censor.NewVerdict(classify(answer), answer), nil
	})
}
