// Package server provides the HTTP API for dynamic playlists.
//
// # Routing
//
// Routes are registered on a chi router with RequestID, RealIP, Recoverer and a structured
// request logger. [ActorResolver] resolves the acting user from the X-User-ID header set by the
// identity layer in front of this service; requests without it are anonymous.
//
//	GET  /health
//	GET  /api/templates
//	POST /api/templates/{id}/playlists
//	POST /api/playlists
//	POST /api/playlists/preview
//	POST /api/playlists/refresh-all?max_age_hours=N
//	GET  /api/playlists/{id}
//	POST /api/playlists/{id}/refresh
//	PUT  /api/playlists/{id}/criteria
//
// # Errors
//
// Failures are written as {"error": "..."} with a status chosen by the wrapped sentinel:
// validation 400, unauthenticated 401, permission 403, not found 404, not dynamic or conflict 409,
// lock timeout 503 and anything else 500.
package server
