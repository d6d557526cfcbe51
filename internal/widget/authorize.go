// Package widget serves the public, unauthenticated configuration endpoint
// for the embeddable widget. It never sees a bearer token; authorization is
// purely a function of the request's source domain and the chatbot's
// configured allow-list.
package widget

import (
	"net/url"
	"strings"

	"github.com/chatflow/chatflow/internal/apierr"
)

// SourceDomain resolves the requesting site's hostname from the Origin and
// Referer headers. Origin wins unless it is absent or the literal "null"
// (opaque origins from sandboxed frames), in which case Referer is used.
// No usable header at all is a BadRequest; an unparseable source yields an
// empty domain rather than an error. A leading "www." is stripped; nothing
// else is normalized.
func SourceDomain(origin, referer string) (string, error) {
	source := origin
	if origin == "" || origin == "null" {
		if referer == "" {
			return "", apierr.BadRequest("Origin or Referer header is required.")
		}
		source = referer
	}

	u, err := url.Parse(source)
	if err != nil {
		return "", nil
	}
	return strings.TrimPrefix(u.Hostname(), "www."), nil
}

// Authorize applies the allow-list. An empty configured domain admits any
// source (domain restriction is opt-in); otherwise the resolved domain must
// match exactly, case-sensitive, with no wildcard or subdomain matching.
func Authorize(requestDomain, allowedDomain string) error {
	allowed := strings.TrimSpace(allowedDomain)
	if allowed == "" {
		return nil
	}
	if requestDomain == "" || requestDomain != allowed {
		return apierr.Forbidden("This chatbot is not authorized for this domain.")
	}
	return nil
}
