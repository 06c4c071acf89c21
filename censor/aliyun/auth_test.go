package aliyun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("hello%20world", Encode("hello world"))
	assert.Equal("a%2Ab~c", Encode("a*b~c"))
	assert.Equal("%2F", Encode("/"))
	assert.Equal("1%2B1%3D2", Encode("1+1=2"))
	assert.Equal("%E4%BD%A0%E5%A5%BD", Encode("你好"))
}

func TestSignDocumentationVector(t *testing.T) {
	s := NewSigner("testid", "testsecret")
	params := map[string]string{
		"AccessKeyId":      "testid",
		"Action":           "DescribeRegions",
		"Format":           "XML",
		"SignatureMethod":  "HMAC-SHA1",
		"SignatureNonce":   "3ee8c1b8-83d3-44af-a94f-4e0ad82fd6cf",
		"SignatureVersion": "1.0",
		"Timestamp":        "2016-02-23T12:46:24Z",
		"Version":          "2014-05-26",
	}
	assert.Equal(t, "OLeaidS1JvxuMvnyHOwuJ+uX5qY=", s.Sign("GET", params))
}

func TestPrepareParams(t *testing.T) {
	assert := assert.New(t)

	s := NewSigner("testid", "testsecret")
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	s.nonce = func() string { return "3ee8c1b8-83d3-44af-a94f-4e0ad82fd6cf" }

	params, err := s.PrepareParams("TextModerationPlus", "chat_detection_pro", map[string]string{"content": "hello world*~"})
	assert.NoError(err)
	assert.Equal(`{"content":"hello world*~"}`, params["ServiceParameters"])
	assert.Equal("2025-01-02T03:04:05Z", params["Timestamp"])
	assert.Equal("JSON", params["Format"])
	assert.Equal("2022-03-02", params["Version"])
	assert.Equal("RQtFPrIhouShfpvm00YKoZMBDos=", params["Signature"])

	unsigned := make(map[string]string)
	for k, v := range params {
		if k != "Signature" {
			unsigned[k] = v
		}
	}
	assert.Equal("AccessKeyId=testid&Action=TextModerationPlus&Format=JSON&Service=chat_detection_pro&ServiceParameters=%7B%22content%22%3A%22hello%20world%2A~%22%7D&SignatureMethod=HMAC-SHA1&SignatureNonce=3ee8c1b8-83d3-44af-a94f-4e0ad82fd6cf&SignatureVersion=1.0&Timestamp=2025-01-02T03%3A04%3A05Z&Version=2022-03-02", CanonicalQuery(unsigned))
}

func TestPrepareParamsFreshNonce(t *testing.T) {
	s := NewSigner("testid", "testsecret")
	a, err := s.PrepareParams("ImageModeration", "baselineCheck", map[string]string{})
	assert.NoError(t, err)
	b, err := s.PrepareParams("ImageModeration", "baselineCheck", map[string]string{})
	assert.NoError(t, err)
	assert.NotEqual(t, a["SignatureNonce"], b["SignatureNonce"])
}
