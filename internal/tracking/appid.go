package tracking

import "net/url"

const (
	// AppNameBrowser is the logical app name for whole-browser usage in a
	// normal browsing window.
	AppNameBrowser = "chrome"

	// AppNameUnknown is the logical app name for windows whose origin cannot
	// be resolved. Unknown usage still counts as time spent.
	AppNameUnknown = "unknown"
)

// WindowKind classifies the focused browser window as reported by the
// extension.
type WindowKind string

const (
	WindowKindNormal WindowKind = "normal"
	WindowKindApp    WindowKind = "app"
	WindowKindPopup  WindowKind = "popup"
)

// Window describes the focused browser window.
type Window struct {
	Kind WindowKind `json:"kind"`
}

// Tab describes an active tab within the focused window.
type Tab struct {
	URL string `json:"url"`
}

// IdentifyApp maps a window descriptor and its active tabs to a logical app
// name. It returns "" when there is no measurable context (no window).
//
// App-like and popup windows are PWA-style apps, named by the hostname of
// their first active tab; a missing or unparsable URL yields
// AppNameUnknown. Normal windows count as whole-browser usage. Any other
// window kind is measured as AppNameUnknown.
func IdentifyApp(win *Window, tabs []Tab) string {
	if win == nil {
		return ""
	}

	switch win.Kind {
	case WindowKindApp, WindowKindPopup:
		if len(tabs) > 0 && tabs[0].URL != "" {
			if host := ExtractHostname(tabs[0].URL); host != "" {
				return host
			}
		}
		return AppNameUnknown
	case WindowKindNormal:
		return AppNameBrowser
	default:
		return AppNameUnknown
	}
}

// ExtractHostname returns the hostname component of rawURL, or "" if the
// URL cannot be parsed or has no hostname.
func ExtractHostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
