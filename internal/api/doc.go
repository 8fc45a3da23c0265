// Package api serves the XBlock REST endpoints over a runtime.
//
// Routes:
//
//	GET  /api/xblock/v2/xblocks/{usage_key}/
//	GET  /api/xblock/v2/xblocks/{usage_key}/handler_url/{handler_name}/
//	ANY  /api/xblock/v2/xblocks/{usage_key}/handler/{user_id}/{secure_token}/{handler_name}/{suffix...}
//	GET  /metrics
//
// Handler URLs carry their own credentials: a short HMAC token bound to a
// user, a usage key and a time window. A token stays valid for at least
// TokenPeriod and at most twice that, so URLs handed to sandboxed frontends
// keep working without session cookies.
package api
