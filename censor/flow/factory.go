package flow

import (
	"log/slog"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/censor/aliyun"
	"github.com/aiocensor/aiocensor/censor/cachestore"
	"github.com/aiocensor/aiocensor/censor/llm"
	"github.com/aiocensor/aiocensor/censor/local"
	"github.com/aiocensor/aiocensor/censor/tencent"
	"github.com/aiocensor/aiocensor/pkg/robusthttp"
)

// Provider names accepted in configuration.
const (
	ProviderAliyun  = "Aliyun"
	ProviderTencent = "Tencent"
	ProviderLLM     = "LLM"
	ProviderLocal   = "Local"
)

// ProviderConfig holds the settings for every backend; only the selected
// ones are used.
type ProviderConfig struct {
	Aliyun  aliyun.Config
	Tencent tencent.Config
	LLM     llm.Config
	Local   local.Config
}

// NewDetector constructs the named backend. Unknown names are
// censor.ErrInvalidInput; missing credentials are whatever the backend reports.
func NewDetector(name string, cfg ProviderConfig) (censor.Detector, error) {
	switch name {
	case ProviderAliyun:
		return aliyun.New(cfg.Aliyun)
	case ProviderTencent:
		return tencent.New(cfg.Tencent)
	case ProviderLLM:
		return llm.New(cfg.LLM)
	case ProviderLocal:
		lcfg := cfg.Local
		if lcfg.Name == "" {
			lcfg.Name = ChannelText
		}
		lcfg.Matcher.Logic = true
		return local.New(lcfg), nil
	default:
		return nil, censor.Errorf(censor.ErrInvalidInput, "", "unknown censor provider: %q", name)
	}
}

// NewIdentifierDetector returns the local detector used for blacklist
// screening: plain patterns, whole-input matches only.
func NewIdentifierDetector(logger *slog.Logger) *local.Detector {
	return local.New(local.Config{
		Name:    ChannelUserID,
		Matcher: local.MatcherOptions{Exact: true},
		Logger:  logger,
	})
}

type Options struct {
	TextProvider  string
	ImageProvider string
	EnableImage   bool
	Providers     ProviderConfig
	// special image hosts; defaults to DefaultSpecialHosts
	SpecialHosts []string
	// tuning for the image download client
	FetchOptions []robusthttp.Option
	// optional; remote text verdicts are cached when set
	Cache  cachestore.VerdictCache
	Alarm  *Alarm
	Logger *slog.Logger
}

// NewFromOptions builds a Flow from provider names. A backend that cannot be
// constructed is logged and its channel left disabled. When text and image
// name the same provider, both channels share one instance.
func NewFromOptions(opts Options) *Flow {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	create := func(channel, name string) censor.Detector {
		if name == "" {
			return nil
		}
		d, err := NewDetector(name, opts.Providers)
		if err != nil {
			logger.Error("failed to initialize censor provider", "channel", channel, "provider", name, "err", err)
			return nil
		}
		logger.Info("censor provider initialized", "channel", channel, "provider", name)
		return d
	}

	text := create(ChannelText, opts.TextProvider)
	var image censor.Detector
	if opts.EnableImage && opts.ImageProvider != "" {
		if opts.ImageProvider == opts.TextProvider && text != nil {
			image = text
		} else {
			image = create(ChannelImage, opts.ImageProvider)
		}
	}

	// verdicts of rebuildable detectors change on refresh
	if _, ok := text.(censor.Rebuildable); text != nil && !ok && opts.Cache != nil {
		text = NewCachedDetector(text, opts.TextProvider, opts.Cache, logger)
	}

	hosts := opts.SpecialHosts
	if hosts == nil {
		hosts = DefaultSpecialHosts
	}
	return New(Config{
		Text:    text,
		Image:   image,
		Fetcher: NewImageFetcher(hosts, opts.FetchOptions...),
		Alarm:   opts.Alarm,
		Logger:  logger,
	})
}
