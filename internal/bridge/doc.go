// Package bridge carries channel-addressed request/response calls between the UI
// process and the license backend.
//
// A Request names a channel and carries a JSON payload; the matching Response has
// the same ID and either a JSON result or a RemoteError. Remote error codes map
// back to the sentinels in internal/errors, so callers can use errors.Is on the
// client side of the wire.
//
// Router binds channels to handlers. LocalClient calls a Router in-process; the
// websocket pair (Server and WSClient) carries the same envelopes over a socket.
package bridge
