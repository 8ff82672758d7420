// Package api implements the storefront's HTTP surface.
//
// It serves the printer status snapshot and its SSE stream, the public shop
// endpoints used by the single-page app, the bearer-protected admin
// endpoints, and the built SPA itself with an index.html fallback.
package api
