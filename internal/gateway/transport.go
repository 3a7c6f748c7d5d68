package gateway

import (
	"net/http"
)

// Transport is the http.RoundTripper that authenticates every outgoing call.
// It attaches the current bearer token and, on a 401 for a call with a
// refresh token available, joins the session's single-flight refresh and
// replays the request exactly once. The replay happens here and nowhere
// else, so a request can never loop through refresh twice.
type Transport struct {
	Session *Session
	Base    http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	access := t.Session.AccessToken()
	resp, err := base.RoundTrip(t.withBearer(req, access))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !t.Session.hasRefreshToken() {
		return resp, nil
	}

	// Authorization rejected and a refresh token exists: queue behind the
	// session's single refresh exchange, then retry with the new token.
	resp.Body.Close()
	if err := t.Session.awaitRefresh(req.Context(), access); err != nil {
		return nil, err
	}

	retry := t.withBearer(req, t.Session.AccessToken())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return base.RoundTrip(retry)
}

func (t *Transport) withBearer(req *http.Request, access string) *http.Request {
	clone := req.Clone(req.Context())
	if access != "" {
		clone.Header.Set("Authorization", "Bearer "+access)
	}
	return clone
}
