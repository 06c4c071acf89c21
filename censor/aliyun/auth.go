package aliyun

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	apiVersion       = "2022-03-02"
	signatureMethod  = "HMAC-SHA1"
	signatureVersion = "1.0"
	timestampFormat  = "2006-01-02T15:04:05Z"
)

// Signer produces request parameters signed with the Aliyun RPC
// signature scheme (HMAC-SHA1 over the sorted canonical query).
type Signer struct {
	KeyID     string
	KeySecret string

	// overridable for tests
	now   func() time.Time
	nonce func() string
}

func NewSigner(keyID, keySecret string) *Signer {
	return &Signer{
		KeyID:     keyID,
		KeySecret: keySecret,
		now:       time.Now,
		nonce:     func() string { return uuid.NewString() },
	}
}

// Encode percent-encodes s per RFC 3986, which is what the signature scheme
// expects. QueryEscape already escapes '*' and leaves '~' alone; only the
// space form differs.
func Encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// CanonicalQuery renders params sorted by key, each key and value encoded.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, Encode(k)+"="+Encode(params[k]))
	}
	return strings.Join(parts, "&")
}

// Sign computes the base64 signature of params for the given HTTP method.
func (s *Signer) Sign(method string, params map[string]string) string {
	stringToSign := method + "&" + Encode("/") + "&" + Encode(CanonicalQuery(params))
	mac := hmac.New(sha1.New, []byte(s.KeySecret+"&"))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// PrepareParams builds the full, signed parameter set for a POST call.
func (s *Signer) PrepareParams(action, service string, serviceParams any) (map[string]string, error) {
	sp, err := json.Marshal(serviceParams)
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"Format":            "JSON",
		"Version":           apiVersion,
		"AccessKeyId":       s.KeyID,
		"SignatureMethod":   signatureMethod,
		"Timestamp":         s.now().UTC().Format(timestampFormat),
		"SignatureVersion":  signatureVersion,
		"SignatureNonce":    s.nonce(),
		"Action":            action,
		"Service":           service,
		"ServiceParameters": string(sp),
	}
	params["Signature"] = s.Sign("POST", params)
	return params, nil
}
