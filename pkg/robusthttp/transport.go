package robusthttp

import (
	"crypto/tls"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

// HostTLSTransport routes requests for a fixed set of hosts through a
// transport that skips certificate verification. Both transports are pooled
// and honor proxy environment variables.
type HostTLSTransport struct {
	secure   *http.Transport
	insecure *http.Transport
	hosts    map[string]bool
}

func NewHostTLSTransport(insecureHosts []string) *HostTLSTransport {
	insecure := cleanhttp.DefaultPooledTransport()
	insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	hosts := make(map[string]bool, len(insecureHosts))
	for _, h := range insecureHosts {
		hosts[strings.ToLower(h)] = true
	}
	return &HostTLSTransport{
		secure:   cleanhttp.DefaultPooledTransport(),
		insecure: insecure,
		hosts:    hosts,
	}
}

func (t *HostTLSTransport) Insecure(host string) bool {
	return t.hosts[strings.ToLower(host)]
}

func (t *HostTLSTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Insecure(req.URL.Hostname()) {
		return t.insecure.RoundTrip(req)
	}
	return t.secure.RoundTrip(req)
}

func (t *HostTLSTransport) CloseIdleConnections() {
	t.secure.CloseIdleConnections()
	t.insecure.CloseIdleConnections()
}
