package tencent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aiocensor/aiocensor/censor"
)

const (
	Provider = "tencent"

	TextHost  = "tms.tencentcloudapi.com"
	ImageHost = "ims.tencentcloudapi.com"

	// per-request text limit of TextModeration, in characters
	DefaultMaxChunk = 10000
)

type Config struct {
	SecretID  string
	SecretKey string

	// full URLs; default to https://{TextHost} and https://{ImageHost}
	TextEndpoint  string
	ImageEndpoint string
	MaxChunk      int
	Retry         censor.RetryPolicy
	Caller        censor.CallerOptions
	Client        *http.Client
}

// Detector moderates text (tms) and images (ims) through Tencent Cloud.
type Detector struct {
	textEndpoint  string
	imageEndpoint string
	maxChunk      int
	retry         censor.RetryPolicy
	signer        *Signer
	caller        *censor.Caller
	logger        *slog.Logger
}

var _ censor.Detector = (*Detector)(nil)

type envelope struct {
	Response *moderationResp `json:"Response"`
}

type moderationResp struct {
	Suggestion string    `json:"Suggestion"`
	Label      string    `json:"Label"`
	SubLabel   string    `json:"SubLabel"`
	Keywords   []string  `json:"Keywords"`
	RequestId  string    `json:"RequestId"`
	Error      *apiError `json:"Error"`
}

type apiError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

func New(cfg Config) (*Detector, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, censor.Errorf(censor.ErrAuth, Provider, "secret id and secret key are required")
	}
	if cfg.TextEndpoint == "" {
		cfg.TextEndpoint = "https://" + TextHost
	}
	if cfg.ImageEndpoint == "" {
		cfg.ImageEndpoint = "https://" + ImageHost
	}
	if cfg.MaxChunk <= 0 {
		cfg.MaxChunk = DefaultMaxChunk
	}
	cfg.Retry.Provider = Provider
	return &Detector{
		textEndpoint:  cfg.TextEndpoint,
		imageEndpoint: cfg.ImageEndpoint,
		maxChunk:      cfg.MaxChunk,
		retry:         cfg.Retry,
		signer:        NewSigner(cfg.SecretID, cfg.SecretKey),
		caller:        censor.NewCaller(Provider, cfg.Client, cfg.Caller),
		logger:        slog.Default().With("provider", Provider),
	}, nil
}

func (d *Detector) DetectText(ctx context.Context, text string) (censor.Verdict, error) {
	return censor.CheckChunks(ctx, text, d.maxChunk, d.checkText)
}

func (d *Detector) checkText(ctx context.Context, chunk string) (censor.Verdict, error) {
	payload, err := json.Marshal(map[string]string{
		"Content": base64.StdEncoding.EncodeToString([]byte(chunk)),
		"BizType": "text_chat",
	})
	if err != nil {
		return censor.Verdict{}, censor.Wrap(censor.ErrInvalidInput, Provider, "encoding payload", err)
	}
	return censor.Retry(ctx, d.retry, func(ctx context.Context) (censor.Verdict, error) {
		resp, err := d.call(ctx, d.textEndpoint, "tms", TextHost, "TextModeration", payload)
		if err != nil {
			return censor.Verdict{}, err
		}
		reasons := censor.NewReasonSet(resp.Label)
		for _, kw := range resp.Keywords {
			reasons.Add(kw)
		}
		return censor.Verdict{Risk: riskFromSuggestion(resp.Suggestion), Reasons: reasons}, nil
	})
}

func (d *Detector) DetectImage(ctx context.Context, image string) (censor.Verdict, error) {
	body := map[string]string{"BizType": "image_chat"}
	switch {
	case censor.IsInlineImage(image):
		body["FileContent"] = strings.TrimPrefix(image, censor.InlineImagePrefix)
	case censor.IsURL(image):
		body["FileUrl"] = image
	default:
		return censor.Verdict{}, censor.Errorf(censor.ErrInvalidInput, Provider, "image must be an http(s) URL or inline payload")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return censor.Verdict{}, censor.Wrap(censor.ErrInvalidInput, Provider, "encoding payload", err)
	}

	return censor.Retry(ctx, d.retry, func(ctx context.Context) (censor.Verdict, error) {
		resp, err := d.call(ctx, d.imageEndpoint, "ims", ImageHost, "ImageModeration", payload)
		if err != nil {
			return censor.Verdict{}, err
		}
		return censor.NewVerdict(riskFromSuggestion(resp.Suggestion), resp.Label, resp.SubLabel), nil
	})
}

func (d *Detector) Close() error {
	return d.caller.Close()
}

func (d *Detector) call(ctx context.Context, endpoint, service, host, action string, payload []byte) (*moderationResp, error) {
	body, err := d.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		d.signer.SignRequest(req, service, host, action, string(payload))
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, censor.Wrap(censor.ErrService, Provider, "decoding response", err)
	}
	if env.Response == nil {
		return nil, censor.Errorf(censor.ErrService, Provider, "response missing Response object")
	}
	if e := env.Response.Error; e != nil {
		d.logger.Warn("moderation request rejected", "action", action, "code", e.Code, "requestId", env.Response.RequestId)
		kind := censor.ErrService
		if strings.HasPrefix(e.Code, "AuthFailure") {
			kind = censor.ErrAuth
		}
		return nil, censor.Errorf(kind, Provider, "%s: %s", e.Code, e.Message)
	}
	return env.Response, nil
}

func riskFromSuggestion(s string) censor.RiskLevel {
	switch strings.ToLower(s) {
	case "pass":
		return censor.Pass
	case "block":
		return censor.Block
	default:
		return censor.Review
	}
}
