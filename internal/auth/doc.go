// Package auth guards the storefront's admin surface.
//
// An operator exchanges the admin password for a short-lived HS256 bearer
// token. The middleware verifies that token and enforces the shop:moderate
// and printer:control scopes on the routes that need them.
package auth
