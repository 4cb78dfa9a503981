// Package app wires the license daemon together and runs it.
//
// New builds every component from a loaded configuration:
//
//	config → logger → OpenTelemetry → appdb → event hub → license service
//	       → bridge router/server → health → chi router → http.Server
//
// Run (or Serve, for a caller-provided listener) blocks until the context is
// cancelled, then closes bridge connections, stops the hub, drains the HTTP
// server, flushes telemetry and closes the database, all within
// Server.ShutdownTimeout.
package app
