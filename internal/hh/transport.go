package hh

import "net/http"

// Transport stamps the identification headers hh.ru requires on every
// request; without them the API answers 403.
type Transport struct {
	UserAgent string
	Base      http.RoundTripper
}

func NewTransport(userAgent string, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{UserAgent: userAgent, Base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.UserAgent)
	r.Header.Set("HH-User-Agent", t.UserAgent)
	return t.Base.RoundTrip(r)
}
