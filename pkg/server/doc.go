// Package server assembles the chat relay's HTTP server.
//
// It mounts the relay endpoint and the auxiliary endpoints (sessions,
// exports, feedback, log viewer, health, version and metrics) on one mux,
// wraps them in the middleware chain and manages the listener lifecycle.
//
// # Middleware Order
//
// From outermost to innermost:
//
//	otelhttp  -> server span per request (probes and scrapes excluded)
//	Recovery  -> converts panics into 500 JSON when nothing was written
//	RequestID -> X-Request-ID in and out, request_id in log records
//	Logging   -> one access log line per request
//	CORS      -> headers on every response, answers preflight
//
// The write timeout is zero by default because chat streams stay open for
// as long as the model generates.
//
// # Usage
//
//	srv := server.NewServer(cfg.Server, server.Routes{
//	    Chat:    relayHandler,
//	    Health:  checker,
//	    Metrics: collector.Handler(),
//	}, logger)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
package server
