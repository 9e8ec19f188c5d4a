// Package health serves the liveness and readiness probes.
//
// /health answers 200 whenever the process can serve HTTP. /ready runs the
// registered checks (upstream credential present, audit sink writable,
// session directory writable) and answers 503 when any of them fails, so a
// load balancer stops sending chat traffic to an instance that would only
// return configuration errors.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("upstream_credential", func(context.Context) error {
//		return client.Ready()
//	})
//	mux.Handle("GET /ready", checker.ReadinessHandler())
package health
