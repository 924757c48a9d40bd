package fetch

import "net/http"

// IdentityTransport adds the caller-identity headers the upstream provider
// requires for app-restricted API keys: the package name and the signing
// certificate fingerprint.
type IdentityTransport struct {
	Package string
	Cert    string
	Base    http.RoundTripper
}

func (t *IdentityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.Package != "" {
		clone.Header.Set("X-Android-Package", t.Package)
	}
	if t.Cert != "" {
		clone.Header.Set("X-Android-Cert", t.Cert)
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}
