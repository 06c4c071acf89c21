package aliyun

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aiocensor/aiocensor/censor"
)

const (
	Provider = "aliyun"

	DefaultEndpoint = "https://green-cip.cn-shanghai.aliyuncs.com"
	// per-request text limit of TextModerationPlus, in characters
	DefaultMaxChunk = 600
)

type Config struct {
	KeyID     string
	KeySecret string

	Endpoint string
	MaxChunk int
	Retry    censor.RetryPolicy
	Caller   censor.CallerOptions
	Client   *http.Client
}

// Detector moderates text and image URLs through the Aliyun content security
// API. Inline images are not accepted by the image endpoint.
type Detector struct {
	endpoint string
	maxChunk int
	retry    censor.RetryPolicy
	signer   *Signer
	caller   *censor.Caller
	logger   *slog.Logger
}

var _ censor.Detector = (*Detector)(nil)

// schema: https://help.aliyun.com/document_detail/2671445.html
type moderationResp struct {
	Code      int             `json:"Code"`
	Message   string          `json:"Message"`
	RequestId string          `json:"RequestId"`
	Data      *moderationData `json:"Data"`
}

type moderationData struct {
	RiskLevel string             `json:"RiskLevel"`
	Result    []moderationResult `json:"Result"`
}

type moderationResult struct {
	Label         string          `json:"Label"`
	RiskWords     string          `json:"RiskWords"`
	Description   string          `json:"Description"`
	CustomizedHit []customizedHit `json:"CustomizedHit"`
}

type customizedHit struct {
	LibName  string `json:"LibName"`
	KeyWords string `json:"KeyWords"`
}

func New(cfg Config) (*Detector, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, censor.Errorf(censor.ErrAuth, Provider, "key id and key secret are required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MaxChunk <= 0 {
		cfg.MaxChunk = DefaultMaxChunk
	}
	cfg.Retry.Provider = Provider
	return &Detector{
		endpoint: cfg.Endpoint,
		maxChunk: cfg.MaxChunk,
		retry:    cfg.Retry,
		signer:   NewSigner(cfg.KeyID, cfg.KeySecret),
		caller:   censor.NewCaller(Provider, cfg.Client, cfg.Caller),
		logger:   slog.Default().With("provider", Provider),
	}, nil
}

func (d *Detector) DetectText(ctx context.Context, text string) (censor.Verdict, error) {
	return censor.CheckChunks(ctx, text, d.maxChunk, d.checkText)
}

func (d *Detector) checkText(ctx context.Context, chunk string) (censor.Verdict, error) {
	return censor.Retry(ctx, d.retry, func(ctx context.Context) (censor.Verdict, error) {
		data, err := d.call(ctx, "TextModerationPlus", "chat_detection_pro", map[string]string{
			"content": chunk,
		})
		if err != nil {
			return censor.Verdict{}, err
		}
		reasons := censor.NewReasonSet()
		for _, r := range data.Result {
			addWords(reasons, r.RiskWords)
			for _, hit := range r.CustomizedHit {
				addWords(reasons, hit.KeyWords)
			}
		}
		return censor.Verdict{Risk: riskFromLevel(data.RiskLevel), Reasons: reasons}, nil
	})
}

func (d *Detector) DetectImage(ctx context.Context, image string) (censor.Verdict, error) {
	if censor.IsInlineImage(image) {
		return censor.Verdict{}, censor.Errorf(censor.ErrNotSupported, Provider, "inline base64 images are not supported")
	}
	if !censor.IsURL(image) {
		return censor.Verdict{}, censor.Errorf(censor.ErrInvalidInput, Provider, "image must be an http(s) URL")
	}
	return censor.Retry(ctx, d.retry, func(ctx context.Context) (censor.Verdict, error) {
		data, err := d.call(ctx, "ImageModeration", "baselineCheck", map[string]string{
			"imageUrl": image,
			"infoType": "customImage,textInImage",
		})
		if err != nil {
			return censor.Verdict{}, err
		}
		reasons := censor.NewReasonSet()
		for _, r := range data.Result {
			reasons.Add(r.Description)
		}
		return censor.Verdict{Risk: riskFromLevel(data.RiskLevel), Reasons: reasons}, nil
	})
}

func (d *Detector) Close() error {
	return d.caller.Close()
}

func (d *Detector) call(ctx context.Context, action, service string, serviceParams any) (*moderationData, error) {
	body, err := d.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		// signed fresh on every attempt so the nonce is never reused
		params, err := d.signer.PrepareParams(action, service, serviceParams)
		if err != nil {
			return nil, err
		}
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		return http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"?"+q.Encode(), http.NoBody)
	})
	if err != nil {
		return nil, err
	}

	var resp moderationResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, censor.Wrap(censor.ErrService, Provider, "decoding response", err)
	}
	if resp.Data == nil {
		d.logger.Warn("moderation response missing data", "action", action, "code", resp.Code, "requestId", resp.RequestId)
		return nil, censor.Errorf(censor.ErrService, Provider, "response missing data code=%d message=%q", resp.Code, resp.Message)
	}
	return resp.Data, nil
}

func riskFromLevel(level string) censor.RiskLevel {
	switch strings.ToLower(level) {
	case "none", "low":
		return censor.Pass
	case "high":
		return censor.Block
	default:
		return censor.Review
	}
}

func addWords(reasons censor.ReasonSet, words string) {
	for _, w := range strings.Split(words, ",") {
		reasons.Add(strings.TrimSpace(w))
	}
}
