package tencent

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	algorithm   = "TC3-HMAC-SHA256"
	apiVersion  = "2020-12-29"
	region      = "ap-guangzhou"
	contentType = "application/json; charset=utf-8"
)

// Signer implements the TC3-HMAC-SHA256 request signature.
type Signer struct {
	SecretID  string
	SecretKey string

	now func() time.Time
}

func NewSigner(secretID, secretKey string) *Signer {
	return &Signer{
		SecretID:  secretID,
		SecretKey: secretKey,
		now:       time.Now,
	}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

// Signature returns the hex signature and credential scope for a POST of
// payload at the given unix timestamp.
func (s *Signer) Signature(service, host, action, payload string, ts int64) (sig string, scope string) {
	date := time.Unix(ts, 0).UTC().Format("2006-01-02")

	canonicalHeaders := "content-type:" + contentType + "\n" +
		"host:" + host + "\n" +
		"x-tc-action:" + strings.ToLower(action) + "\n"
	signedHeaders := "content-type;host;x-tc-action"
	canonicalRequest := strings.Join([]string{
		http.MethodPost,
		"/",
		"",
		canonicalHeaders,
		signedHeaders,
		sha256Hex(payload),
	}, "\n")

	scope = date + "/" + service + "/tc3_request"
	stringToSign := strings.Join([]string{
		algorithm,
		strconv.FormatInt(ts, 10),
		scope,
		sha256Hex(canonicalRequest),
	}, "\n")

	secretDate := hmacSHA256([]byte("TC3"+s.SecretKey), date)
	secretService := hmacSHA256(secretDate, service)
	secretSigning := hmacSHA256(secretService, "tc3_request")
	return hex.EncodeToString(hmacSHA256(secretSigning, stringToSign)), scope
}

// Authorization renders the Authorization header value.
func (s *Signer) Authorization(service, host, action, payload string, ts int64) string {
	sig, scope := s.Signature(service, host, action, payload, ts)
	return algorithm + " Credential=" + s.SecretID + "/" + scope +
		", SignedHeaders=content-type;host;x-tc-action" +
		", Signature=" + sig
}

// SignRequest sets every header the API requires on req.
func (s *Signer) SignRequest(req *http.Request, service, host, action, payload string) {
	ts := s.now().Unix()
	req.Host = host
	req.Header.Set("Authorization", s.Authorization(service, host, action, payload, ts))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Host", host)
	req.Header.Set("X-TC-Region", region)
	req.Header.Set("X-TC-Action", action)
	req.Header.Set("X-TC-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-TC-Version", apiVersion)
}
