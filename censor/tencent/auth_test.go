package tencent

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const vectorPayload = `{"Content":"aGVsbG8=","BizType":"text_chat"}`

func TestSignatureVector(t *testing.T) {
	assert := assert.New(t)

	s := NewSigner("secretid", "secretkey")
	sig, scope := s.Signature("tms", "tms.tencentcloudapi.com", "TextModeration", vectorPayload, 1700000000)
	assert.Equal("95c8e1add938256455dc1ca0f5be93271059f7a83b9824f2e9559614acfdb47d", sig)
	assert.Equal("2023-11-14/tms/tc3_request", scope)

	assert.Equal(
		"TC3-HMAC-SHA256 Credential=secretid/2023-11-14/tms/tc3_request, SignedHeaders=content-type;host;x-tc-action, Signature=95c8e1add938256455dc1ca0f5be93271059f7a83b9824f2e9559614acfdb47d",
		s.Authorization("tms", "tms.tencentcloudapi.com", "TextModeration", vectorPayload, 1700000000),
	)
}

func TestSignRequestHeaders(t *testing.T) {
	assert := assert.New(t)

	s := NewSigner("secretid", "secretkey")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	req, err := http.NewRequest(http.MethodPost, "https://tms.tencentcloudapi.com", nil)
	assert.NoError(err)
	s.SignRequest(req, "tms", "tms.tencentcloudapi.com", "TextModeration", vectorPayload)

	assert.Contains(req.Header.Get("Authorization"), "Signature=95c8e1add938256455dc1ca0f5be93271059f7a83b9824f2e9559614acfdb47d")
	assert.Equal("application/json; charset=utf-8", req.Header.Get("Content-Type"))
	assert.Equal("ap-guangzhou", req.Header.Get("X-TC-Region"))
	assert.Equal("TextModeration", req.Header.Get("X-TC-Action"))
	assert.Equal("1700000000", req.Header.Get("X-TC-Timestamp"))
	assert.Equal("2020-12-29", req.Header.Get("X-TC-Version"))
	assert.Equal("tms.tencentcloudapi.com", req.Host)
}
