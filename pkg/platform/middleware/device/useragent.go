// Package device summarises the submitting client for audit events.
// Raw User-Agent strings are long and fingerprint-friendly; audit records keep
// only the coarse browser and platform.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Summary is the coarse description of a client derived from its User-Agent.
type Summary struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	Mobile  bool   `json:"mobile"`
	Bot     bool   `json:"bot"`
}

// String renders the summary as "Browser on OS".
func (s Summary) String() string {
	switch {
	case s.Browser == "" && s.OS == "":
		return "unknown"
	case s.OS == "":
		return s.Browser
	case s.Browser == "":
		return s.OS
	}
	return s.Browser + " on " + s.OS
}

// Describe parses a User-Agent header. Browser versions are dropped.
func Describe(userAgent string) Summary {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return Summary{}
	}
	ua := useragent.New(userAgent)
	name, _ := ua.Browser()
	return Summary{
		Browser: name,
		OS:      ua.OSInfo().Name,
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
}
