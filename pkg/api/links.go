package api

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/platinummonkey/beacon/pkg/dispatch"
	"github.com/platinummonkey/beacon/pkg/httputil"
)

// httpClick is a tracked link followed over HTTP. The redirect is the
// navigation, so there is no default action to suppress.
type httpClick struct {
	href string
}

func (httpClick) PreventDefault() {}

func (c httpClick) Href() string { return c.href }

// followLink handles GET /v1/links/{event}
// Query params:
//   - to: absolute http(s) destination (required)
//   - clients: comma separated client names; absent means all
//   - delay: redirect delay, e.g. 500ms
//
// The event is sent first; the 302 is written once the redirect delay passes.
func (s *Server) followLink(w http.ResponseWriter, r *http.Request) {
	event, ok := httputil.ParsePathStringOrError(w, r, "event")
	if !ok {
		return
	}

	dest, err := s.parseDestination(r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	delay, err := httputil.ParseQueryDuration(r, "delay", s.opts.LinkDelay)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if delay < 0 {
		httputil.WriteValidationError(w, "delay must not be negative")
		return
	}

	opts := []dispatch.LinkOption{dispatch.WithRedirectDelay(delay)}
	if names, present := httputil.ParseQueryList(r, "clients"); present {
		opts = append(opts, dispatch.LinkTo(names...))
	}

	props := dispatch.Properties{"destination": dest}
	if ref := r.Referer(); ref != "" {
		props["referrer"] = ref
	}

	navigated := make(chan string, 1)
	nav := dispatch.NavigatorFunc(func(u string) { navigated <- u })

	navigation, err := s.dispatcher.LinkClickHandler(event, props, nav, opts...)(r.Context(), httpClick{href: dest})
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}

	select {
	case u := <-navigated:
		http.Redirect(w, r, u, http.StatusFound)
	case <-r.Context().Done():
		navigation.Stop()
	}
}

func (s *Server) parseDestination(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("to is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid destination: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("destination must be an absolute http or https URL")
	}
	if s.allowedHosts != nil && !s.allowedHosts[normalizeHost(u.Host)] {
		return "", fmt.Errorf("destination host not allowed: %s", u.Hostname())
	}
	return u.String(), nil
}

// normalizeHost lowercases a host and drops any port.
func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}
