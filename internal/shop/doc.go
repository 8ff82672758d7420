// Package shop implements the storefront records behind the HTTP API:
// orders, the community upload queue and gallery, the colour catalogue,
// IP bans and visit analytics.
//
// Every mutation runs in a single store transaction. Admin mutations are
// written to the audit trail with the caller taken from the request context.
package shop
