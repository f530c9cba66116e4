// Package http mounts a switchboard server behind a chi router, for
// deployments that run it inside net/http instead of the native listener.
//
// The router adds:
//
//   - middleware.RealIP, when the server sits behind a trusted proxy, so
//     access control sees the client address from X-Forwarded-For or
//     X-Real-IP
//   - middleware.Recoverer, as a last line of defence for panics raised
//     outside the pipeline
//   - the Prometheus endpoint, served directly by chi so scrapes bypass the
//     pipeline (and its access control)
//   - a liveness endpoint
//
// Everything else is handed to switchboard.Server.ServeHTTP:
//
//	router := sbhttp.NewRouter(server, sbhttp.RouterConfig{
//	    TrustProxy:  true,
//	    MetricsPath: "/metrics",
//	    Metrics:     metrics.HTTPHandler(),
//	})
//	http.ListenAndServe(":8000", router)
package http
