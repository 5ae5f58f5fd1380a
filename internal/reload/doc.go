// Package reload reloads an unpacked extension in a running browser.
//
// The browser side is reached through two small capabilities. A [Browser]
// opens a [Session] against the remote debugging endpoint; a Session lists
// the extensions shown on the browser's extensions-management page and
// presses the developer-mode reload control of one of them. [Client] owns
// the policy: it resolves the configured [Target] by identifier or display
// name, reports what was visible when resolution fails, and always closes
// the session before returning.
//
// The chromedp-backed implementation lives in package devtools.
package reload
