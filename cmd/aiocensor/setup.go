package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/censor/aliyun"
	"github.com/aiocensor/aiocensor/censor/cachestore"
	"github.com/aiocensor/aiocensor/censor/countstore"
	"github.com/aiocensor/aiocensor/censor/flow"
	"github.com/aiocensor/aiocensor/censor/llm"
	"github.com/aiocensor/aiocensor/censor/local"
	"github.com/aiocensor/aiocensor/censor/notify"
	"github.com/aiocensor/aiocensor/censor/setstore"
	"github.com/aiocensor/aiocensor/censor/tencent"
	"github.com/aiocensor/aiocensor/pkg/robusthttp"

	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"
)

// flags shared by every command that submits content
var flowFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "text-provider",
		Usage:   "text moderation backend: Aliyun, Tencent, LLM or Local",
		Value:   flow.ProviderLocal,
		EnvVars: []string{"AIOCENSOR_TEXT_PROVIDER"},
	},
	&cli.StringFlag{
		Name:    "image-provider",
		Usage:   "image moderation backend: Aliyun, Tencent or LLM",
		EnvVars: []string{"AIOCENSOR_IMAGE_PROVIDER"},
	},
	&cli.BoolFlag{
		Name:    "enable-image-censor",
		EnvVars: []string{"AIOCENSOR_ENABLE_IMAGE_CENSOR"},
	},
	&cli.StringFlag{
		Name:    "aliyun-key-id",
		EnvVars: []string{"ALIYUN_KEY_ID"},
	},
	&cli.StringFlag{
		Name:    "aliyun-key-secret",
		EnvVars: []string{"ALIYUN_KEY_SECRET"},
	},
	&cli.StringFlag{
		Name:    "tencent-secret-id",
		EnvVars: []string{"TENCENT_SECRET_ID"},
	},
	&cli.StringFlag{
		Name:    "tencent-secret-key",
		EnvVars: []string{"TENCENT_SECRET_KEY"},
	},
	&cli.StringFlag{
		Name:    "llm-base-url",
		Usage:   "OpenAI-compatible API base URL (eg, https://api.openai.com/v1)",
		EnvVars: []string{"LLM_BASE_URL"},
	},
	&cli.StringFlag{
		Name:    "llm-api-key",
		EnvVars: []string{"LLM_API_KEY"},
	},
	&cli.StringFlag{
		Name:    "llm-model",
		EnvVars: []string{"LLM_MODEL"},
	},
	&cli.BoolFlag{
		Name:    "local-normalize",
		Usage:   "fold unicode compatibility forms and case before local matching",
		EnvVars: []string{"AIOCENSOR_LOCAL_NORMALIZE"},
	},
	&cli.Float64Flag{
		Name:    "provider-rate-limit",
		Usage:   "max requests per second to each moderation provider (zero for unlimited)",
		EnvVars: []string{"AIOCENSOR_PROVIDER_RATE_LIMIT"},
	},
	&cli.IntFlag{
		Name:    "provider-concurrency",
		Usage:   "max in-flight requests to each moderation provider",
		Value:   censor.DefaultConcurrency,
		EnvVars: []string{"AIOCENSOR_PROVIDER_CONCURRENCY"},
	},
	&cli.StringSliceFlag{
		Name:    "insecure-image-hosts",
		Usage:   "image hosts submitted over http and downloaded without TLS verification",
		Value:   cli.NewStringSlice(flow.DefaultSpecialHosts...),
		EnvVars: []string{"AIOCENSOR_INSECURE_IMAGE_HOSTS"},
	},
	&cli.IntFlag{
		Name:    "image-fetch-retries",
		Usage:   "retries for fallback image downloads after connection errors or 5xx responses",
		Value:   2,
		EnvVars: []string{"AIOCENSOR_IMAGE_FETCH_RETRIES"},
	},
	&cli.StringFlag{
		Name:    "sets-json-path",
		Usage:   "file path of JSON file containing seed blacklist and sensitive_words sets",
		EnvVars: []string{"AIOCENSOR_SETS_JSON_PATH"},
	},
	&cli.StringFlag{
		Name:    "redis-url",
		Usage:   "redis connection URL, for verdict cache and failure counters: redis://<user>:<pass>@<hostname>:6379/<db>",
		EnvVars: []string{"AIOCENSOR_REDIS_URL"},
	},
	&cli.DurationFlag{
		Name:    "cache-ttl",
		Usage:   "how long remote text verdicts are cached (zero disables)",
		Value:   30 * time.Minute,
		EnvVars: []string{"AIOCENSOR_CACHE_TTL"},
	},
	&cli.IntFlag{
		Name:    "alarm-threshold",
		Usage:   "failures of one kind per channel per hour before an alarm is raised",
		Value:   flow.DefaultAlarmThreshold,
		EnvVars: []string{"AIOCENSOR_ALARM_THRESHOLD"},
	},
	&cli.StringFlag{
		Name:    "slack-webhook-url",
		Usage:   "full URL of slack webhook",
		EnvVars: []string{"SLACK_WEBHOOK_URL"},
	},
}

func providerConfig(cctx *cli.Context) flow.ProviderConfig {
	callerOpts := censor.CallerOptions{
		Concurrency: int64(cctx.Int("provider-concurrency")),
		RateLimit:   cctx.Float64("provider-rate-limit"),
	}
	client := robusthttp.NewProviderClient(censor.DefaultTimeout, cctx.Int("provider-concurrency"))
	return flow.ProviderConfig{
		Aliyun: aliyun.Config{
			KeyID:     cctx.String("aliyun-key-id"),
			KeySecret: cctx.String("aliyun-key-secret"),
			Caller:    callerOpts,
			Client:    client,
		},
		Tencent: tencent.Config{
			SecretID:  cctx.String("tencent-secret-id"),
			SecretKey: cctx.String("tencent-secret-key"),
			Caller:    callerOpts,
			Client:    client,
		},
		LLM: llm.Config{
			BaseURL: cctx.String("llm-base-url"),
			APIKey:  cctx.String("llm-api-key"),
			Model:   cctx.String("llm-model"),
			Caller:  callerOpts,
			Client:  client,
		},
		Local: local.Config{
			Matcher: local.MatcherOptions{Normalize: cctx.Bool("local-normalize")},
		},
	}
}

// newFlow wires detectors, the verdict cache and the failure alarm. With a
// redis URL, cache and counters are shared between instances; otherwise they
// are in-process.
func newFlow(cctx *cli.Context, logger *slog.Logger) (*flow.Flow, setstore.SetStore, error) {
	sets := setstore.NewMemSetStore()
	if p := cctx.String("sets-json-path"); p != "" {
		if err := sets.LoadFromFileJSON(p); err != nil {
			return nil, nil, fmt.Errorf("initializing in-process setstore: %v", err)
		}
		logger.Info("loaded set config from JSON", "path", p)
	}

	var counters countstore.CountStore
	var cache cachestore.VerdictCache
	ttl := cctx.Duration("cache-ttl")
	if redisURL := cctx.String("redis-url"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(cctx.Context).Result(); err != nil {
			return nil, nil, fmt.Errorf("redis ping failed: %v", err)
		}

		counters = countstore.NewRedisCountStore(rdb)
		if ttl > 0 {
			cache = cachestore.NewRedisVerdictCacheFromClient(rdb, ttl)
		}
	} else {
		counters = countstore.NewMemCountStore()
		if ttl > 0 {
			cache = cachestore.NewMemVerdictCache(5_000, ttl)
		}
	}

	var notifier notify.Notifier
	if u := cctx.String("slack-webhook-url"); u != "" {
		notifier = &notify.SlackNotifier{
			SlackWebhookURL: u,
			Client:          robusthttp.NewFetchClient(robusthttp.WithLogger(logger)),
		}
	}
	alarm := flow.NewAlarm(counters, notifier, cctx.Int("alarm-threshold"))
	alarm.Logger = logger.With("system", "failure-alarm")

	fetchOpts := []robusthttp.Option{
		robusthttp.WithMaxRetries(cctx.Int("image-fetch-retries")),
		robusthttp.WithLogger(logger.With("system", "image-fetch")),
	}
	f := flow.NewFromOptions(flow.Options{
		TextProvider:  cctx.String("text-provider"),
		ImageProvider: cctx.String("image-provider"),
		EnableImage:   cctx.Bool("enable-image-censor"),
		Providers:     providerConfig(cctx),
		SpecialHosts:  cctx.StringSlice("insecure-image-hosts"),
		FetchOptions:  fetchOpts,
		Cache:         cache,
		Alarm:         alarm,
		Logger:        logger,
	})
	if err := f.Open(cctx.Context); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("opening detectors: %w", err)
	}
	return f, sets, nil
}

// loadPatterns pushes the current blacklist and sensitive words into the
// local detectors once.
func loadPatterns(ctx context.Context, f *flow.Flow, source flow.PatternSource, sets setstore.SetStore) error {
	return flow.NewRefresher(f, source, sets, 0).Refresh(ctx)
}
