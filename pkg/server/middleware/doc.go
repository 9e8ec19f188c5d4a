// Package middleware provides the HTTP middleware shared by every route.
//
// The server applies them in this order, outermost first:
//
//	Recovery -> RequestID -> Logging -> CORS -> routes
//
// Recovery must see the response writer before anything else wraps it so it
// can tell whether a response was already committed. RequestID runs before
// Logging so log lines carry the request_id attribute.
//
// None of these wrappers buffer the response, and all of them keep Flush
// reachable, so event streams pass through unchanged. There is no
// write-timeout wrapper; a chat stream lasts as long as the client
// connection.
package middleware
