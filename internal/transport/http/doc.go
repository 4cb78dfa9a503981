// Package http exposes the daemon over HTTP: the websocket bridge, the event hub,
// a REST view of the license store, health checks and prometheus metrics.
//
// Handlers stay thin. They decode the request, call the license service and
// render the result; failures are rendered as RFC 7807 problem details.
//
//	GET    /bridge                      websocket request/response bridge
//	GET    /events                      websocket event stream
//	GET    /api/version                 build and protocol version
//	GET    /api/license/status          resolved license status
//	GET    /api/license/licenses        stored license keys
//	POST   /api/license/licenses        insert (id 0) or update a key
//	DELETE /api/license/licenses/{id}   remove a key
//	POST   /api/license/trial           create the one-time trial license
//	GET    /api/license/installation-id installation identifier
//	GET    /api/license/export          workbook of all keys and the status
//	GET    /healthz                     readiness
//	GET    /healthz/live                liveness
//	GET    /metrics                     prometheus exposition
package http
