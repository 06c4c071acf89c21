package flow

import (
	"testing"
	"time"

	"github.com/aiocensor/aiocensor/censor"
	"github.com/aiocensor/aiocensor/censor/aliyun"
	"github.com/aiocensor/aiocensor/censor/cachestore"
	"github.com/aiocensor/aiocensor/censor/llm"
	"github.com/aiocensor/aiocensor/censor/local"
	"github.com/aiocensor/aiocensor/censor/tencent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProviders = ProviderConfig{
	Aliyun:  aliyun.Config{KeyID: "id", KeySecret: "secret"},
	Tencent: tencent.Config{SecretID: "id", SecretKey: "key"},
	LLM:     llm.Config{BaseURL: "http://localhost:8080/v1", Model: "censor-model"},
}

func TestNewDetector(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	d, err := NewDetector(ProviderAliyun, testProviders)
	require.NoError(err)
	assert.IsType(&aliyun.Detector{}, d)

	d, err = NewDetector(ProviderTencent, testProviders)
	require.NoError(err)
	assert.IsType(&tencent.Detector{}, d)

	d, err = NewDetector(ProviderLLM, testProviders)
	require.NoError(err)
	assert.IsType(&llm.Detector{}, d)

	d, err = NewDetector(ProviderLocal, testProviders)
	require.NoError(err)
	assert.IsType(&local.Detector{}, d)

	_, err = NewDetector("Azure", testProviders)
	assert.ErrorIs(err, censor.ErrInvalidInput)

	_, err = NewDetector(ProviderAliyun, ProviderConfig{})
	assert.ErrorIs(err, censor.ErrAuth)
}

func TestNewFromOptions(t *testing.T) {
	assert := assert.New(t)

	// construction failures leave the channel disabled
	f := NewFromOptions(Options{TextProvider: "Azure"})
	assert.Nil(f.TextDetector())
	assert.Nil(f.ImageDetector())
	assert.NotNil(f.UserIDDetector())

	f = NewFromOptions(Options{TextProvider: ProviderTencent, ImageProvider: ProviderTencent, Providers: testProviders})
	assert.NotNil(f.TextDetector())
	assert.Nil(f.ImageDetector())

	f = NewFromOptions(Options{
		TextProvider:  ProviderTencent,
		ImageProvider: ProviderTencent,
		EnableImage:   true,
		Providers:     testProviders,
	})
	assert.Same(f.TextDetector(), f.ImageDetector())

	f = NewFromOptions(Options{
		TextProvider:  ProviderAliyun,
		ImageProvider: ProviderLLM,
		EnableImage:   true,
		Providers:     testProviders,
		Cache:         cachestore.NewMemVerdictCache(10, time.Minute),
	})
	assert.IsType(&CachedDetector{}, f.TextDetector())
	assert.IsType(&llm.Detector{}, f.ImageDetector())
	assert.NoError(f.Close())

	f = NewFromOptions(Options{
		TextProvider: ProviderLocal,
		Cache:        cachestore.NewMemVerdictCache(10, time.Minute),
	})
	assert.IsType(&local.Detector{}, f.TextDetector())
	assert.NoError(f.Close())
}
