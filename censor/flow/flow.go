// Package flow routes text, image and identifier submissions to the configured
// detectors and turns every detector failure into a review result.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aiocensor/aiocensor/censor"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Channel names, used as metric and alarm labels.
const (
	ChannelText   = "text"
	ChannelImage  = "image"
	ChannelUserID = "userid"
)

var (
	ErrTextDisabled  = errors.New("text moderation is not configured")
	ErrImageDisabled = errors.New("image moderation is not enabled or not configured")
)

const blacklistReasonPrefix = "blacklisted user: "

var tracer = otel.Tracer("censor-flow")

type Config struct {
	Text  censor.Detector
	Image censor.Detector
	// identifier screening; defaults to NewIdentifierDetector
	UserID  censor.Detector
	Fetcher *ImageFetcher
	// optional
	Alarm  *Alarm
	Logger *slog.Logger
}

// Flow owns the detectors behind each submission channel.
//
// Every submission returns a Result. Detector errors never reach the caller:
// they become a Review verdict whose reason is the error text. The only
// errors returned are ErrTextDisabled and ErrImageDisabled.
type Flow struct {
	text    censor.Detector
	image   censor.Detector
	userid  censor.Detector
	fetcher *ImageFetcher
	alarm   *Alarm
	logger  *slog.Logger
}

func New(cfg Config) *Flow {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("system", "censor-flow")
	if cfg.UserID == nil {
		cfg.UserID = NewIdentifierDetector(logger)
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewImageFetcher(DefaultSpecialHosts)
	}
	return &Flow{
		text:    cfg.Text,
		image:   cfg.Image,
		userid:  cfg.UserID,
		fetcher: cfg.Fetcher,
		alarm:   cfg.Alarm,
		logger:  logger,
	}
}

func (f *Flow) TextDetector() censor.Detector {
	return f.text
}

func (f *Flow) ImageDetector() censor.Detector {
	return f.image
}

func (f *Flow) UserIDDetector() censor.Detector {
	return f.userid
}

func (f *Flow) startSpan(ctx context.Context, name, channel, source string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("source", source),
	))
}

// finish records metrics and trace attributes for a verdict.
func (f *Flow) finish(span trace.Span, channel string, msg censor.Message, v censor.Verdict, extra map[string]any) *censor.Result {
	verdictCount.WithLabelValues(channel, v.Risk.String()).Inc()
	span.SetAttributes(attribute.String("risk", v.Risk.String()))
	return censor.NewResult(msg, v, extra)
}

// failOpen converts a detector error into a Review result.
func (f *Flow) failOpen(ctx context.Context, span trace.Span, channel string, msg censor.Message, err error, extra map[string]any) *censor.Result {
	f.logger.Error("censor check failed, degrading to review", "channel", channel, "source", msg.Source, "kind", censor.KindName(err), "err", err)
	span.RecordError(err)
	failOpenCount.WithLabelValues(channel, censor.KindName(err)).Inc()
	if f.alarm != nil {
		f.alarm.Record(ctx, channel, msg.Source, err)
	}
	return f.finish(span, channel, msg, censor.NewVerdict(censor.Review, err.Error()), extra)
}

// SubmitText checks content with the text detector. extra is attached to the
// result unchanged.
func (f *Flow) SubmitText(ctx context.Context, content, source string, extra map[string]any) (*censor.Result, error) {
	if f.text == nil {
		return nil, ErrTextDisabled
	}
	ctx, span := f.startSpan(ctx, "SubmitText", ChannelText, source)
	defer span.End()
	start := time.Now()
	defer func() {
		submitDuration.WithLabelValues(ChannelText).Observe(time.Since(start).Seconds())
	}()

	msg := censor.NewMessage(content, source)
	if content == "" {
		return f.finish(span, ChannelText, msg, censor.PassVerdict(), extra), nil
	}
	v, err := f.text.DetectText(ctx, content)
	if err != nil {
		return f.failOpen(ctx, span, ChannelText, msg, err, extra), nil
	}
	return f.finish(span, ChannelText, msg, v, extra), nil
}

// SubmitImage checks an image URL (or inline payload) with the image detector.
//
// URLs are first handed to the provider as-is (special hosts over plain http).
// If that fails, the image is downloaded and retried inline. Downloads that
// are not a recognized image format are not sent; the first failure is then
// reported. The result message always carries the original content.
func (f *Flow) SubmitImage(ctx context.Context, content, source string) (*censor.Result, error) {
	if f.image == nil {
		return nil, ErrImageDisabled
	}
	ctx, span := f.startSpan(ctx, "SubmitImage", ChannelImage, source)
	defer span.End()
	start := time.Now()
	defer func() {
		submitDuration.WithLabelValues(ChannelImage).Observe(time.Since(start).Seconds())
	}()

	msg := censor.NewMessage(content, source)
	if !censor.IsURL(content) {
		v, err := f.image.DetectImage(ctx, content)
		if err != nil {
			return f.failOpen(ctx, span, ChannelImage, msg, err, nil), nil
		}
		return f.finish(span, ChannelImage, msg, v, nil), nil
	}

	v, err := f.image.DetectImage(ctx, f.fetcher.ProviderURL(content))
	if err == nil {
		return f.finish(span, ChannelImage, msg, v, nil), nil
	}
	f.logger.Warn("image check by url failed, trying inline", "source", source, "err", err)

	inline, ferr := f.fetcher.Inline(ctx, content)
	if ferr != nil {
		f.logger.Warn("image download failed", "source", source, "url", content, "err", ferr)
		return f.failOpen(ctx, span, ChannelImage, msg, err, nil), nil
	}
	span.SetAttributes(attribute.Bool("inline_fallback", true))
	v, err = f.image.DetectImage(ctx, inline)
	if err != nil {
		return f.failOpen(ctx, span, ChannelImage, msg, err, nil), nil
	}
	return f.finish(span, ChannelImage, msg, v, nil), nil
}

// SubmitUserID screens an identifier against the blacklist. A match is
// reported as a single "blacklisted user: ..." reason.
func (f *Flow) SubmitUserID(ctx context.Context, userid, source string) (*censor.Result, error) {
	ctx, span := f.startSpan(ctx, "SubmitUserID", ChannelUserID, source)
	defer span.End()
	start := time.Now()
	defer func() {
		submitDuration.WithLabelValues(ChannelUserID).Observe(time.Since(start).Seconds())
	}()

	msg := censor.NewMessage(userid, source)
	v, err := f.userid.DetectText(ctx, userid)
	if err != nil {
		return f.failOpen(ctx, span, ChannelUserID, msg, err, nil), nil
	}
	if len(v.Reasons) > 0 {
		v = censor.NewVerdict(v.Risk, blacklistReasonPrefix+strings.Join(v.Reasons.List(), ", "))
	}
	return f.finish(span, ChannelUserID, msg, v, nil), nil
}

// detectors lists the distinct underlying detectors, text first.
func (f *Flow) detectors() []censor.Detector {
	var out []censor.Detector
	seen := make(map[censor.Detector]bool)
	for _, d := range []censor.Detector{f.text, f.image, f.userid} {
		if d == nil {
			continue
		}
		inner := unwrapDetector(d)
		if seen[inner] {
			continue
		}
		seen[inner] = true
		out = append(out, d)
	}
	return out
}

// Open prepares every detector that has startup work (eg, local automata).
func (f *Flow) Open(ctx context.Context) error {
	for _, d := range f.detectors() {
		if o, ok := unwrapDetector(d).(censor.Opener); ok {
			if err := o.Open(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes each distinct detector once. Failures are logged, not
// returned.
func (f *Flow) Close() error {
	for _, d := range f.detectors() {
		if err := d.Close(); err != nil {
			f.logger.Error("failed to close detector", "err", err)
		}
	}
	return nil
}
