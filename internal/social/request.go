package social

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// LoginRequest is the provider-tagged authorization code handed over by
// the callback. Implementations: SinaRequest, TencentRequest.
type LoginRequest interface {
	Provider() Provider
	AuthCode() string
	isLoginRequest()
}

// SinaRequest carries a Sina Weibo authorization code.
type SinaRequest struct {
	Code string
}

func (SinaRequest) Provider() Provider { return ProviderSina }
func (r SinaRequest) AuthCode() string { return r.Code }
func (SinaRequest) isLoginRequest()    {}

// TencentRequest carries a Tencent Weibo authorization code and the openid
// returned alongside it.
type TencentRequest struct {
	Code   string
	OpenID string
}

func (TencentRequest) Provider() Provider { return ProviderTencent }
func (r TencentRequest) AuthCode() string { return r.Code }
func (TencentRequest) isLoginRequest()    {}

// NewLoginRequest keeps the callback contract: a present openid selects
// Tencent, otherwise the code is a Sina code.
func NewLoginRequest(code, openid string) LoginRequest {
	if strings.TrimSpace(openid) != "" {
		return TencentRequest{Code: code, OpenID: openid}
	}
	return SinaRequest{Code: code}
}

// RequestContext is what the providers need from the inbound HTTP request.
type RequestContext struct {
	// URL is the absolute URL of the current request; redirect URIs are
	// resolved against it.
	URL *url.URL

	// ForwardedFor is the raw X-Forwarded-For header, if any.
	ForwardedFor string

	// RemoteAddr is the direct peer address (host:port or host).
	RemoteAddr string
}

// RequestContextFrom builds a RequestContext from r, honouring
// X-Forwarded-Proto for the scheme.
func RequestContextFrom(r *http.Request) RequestContext {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "https"
	if r.TLS == nil {
		u.Scheme = "http"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		u.Scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return RequestContext{
		URL:          &u,
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		RemoteAddr:   r.RemoteAddr,
	}
}

// ClientIP returns the forwarded-for value when present, else the host
// part of the remote address.
func (rc RequestContext) ClientIP() string {
	if xf := strings.TrimSpace(rc.ForwardedFor); xf != "" {
		return strings.TrimSpace(strings.Split(xf, ",")[0])
	}
	if host, _, err := net.SplitHostPort(rc.RemoteAddr); err == nil {
		return host
	}
	return rc.RemoteAddr
}

// RedirectURI resolves ref against the request URL and drops the query.
func (rc RequestContext) RedirectURI(ref string) string {
	if rc.URL == nil {
		return ref
	}
	target, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	u := rc.URL.ResolveReference(target)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
