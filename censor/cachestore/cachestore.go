package cachestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/aiocensor/aiocensor/censor"
)

type VerdictCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (v censor.Verdict, ok bool, err error)
	Set(ctx context.Context, key string, v censor.Verdict) error
	Purge(ctx context.Context, key string) error
}

// Key derives the cache key for content checked by provider.
func Key(provider, content string) string {
	sum := sha256.Sum256([]byte(content))
	return provider + "/" + hex.EncodeToString(sum[:])
}

type cachedVerdict struct {
	Risk    censor.RiskLevel `json:"risk"`
	Reasons censor.ReasonSet `json:"reasons"`
}

func encodeVerdict(v censor.Verdict) (string, error) {
	b, err := json.Marshal(cachedVerdict{Risk: v.Risk, Reasons: v.Reasons})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeVerdict(s string) (censor.Verdict, error) {
	var cv cachedVerdict
	if err := json.Unmarshal([]byte(s), &cv); err != nil {
		return censor.Verdict{}, err
	}
	if cv.Reasons == nil {
		cv.Reasons = censor.ReasonSet{}
	}
	return censor.Verdict{Risk: cv.Risk, Reasons: cv.Reasons}, nil
}
