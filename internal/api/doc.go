// Package api exposes the orchestrator over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /environments
//	POST   /environments
//	GET    /environments/{id}
//	DELETE /environments/{id}
//	POST   /environments/{id}/start?wait=true&timeout=30s
//	POST   /environments/{id}/stop
//	GET    /environments/{id}/events
//	GET    /environments/{id}/logs   (websocket, one text frame per line)
//
// Errors are returned as {"error": "...", "kind": "..."} with a status code
// derived from the error kind.
package api
