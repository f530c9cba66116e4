// Package switchboard is an embeddable HTTP server with an ordered dispatch
// pipeline, source address access control and a chunked transfer response
// engine.
//
// Every request flows through the same stages:
//
//  1. OPTIONS requests go to Routes.Preflight.
//  2. Routes.PreRouting may inspect or answer the request.
//  3. The access control manager admits or denies the source address.
//  4. Routes.PreAuthentication is searched for a match.
//  5. Routes.AuthenticateRequest may answer (reject) the request.
//  6. Routes.PostAuthentication is searched for a match.
//  7. Routes.Default handles whatever is left (404 when nil).
//
// Routes.PostRouting then runs once the response is complete. A stage ends
// the request by sending the response headers.
//
// Each RoutingGroup searches its tables in a fixed order: content routes
// (GET and HEAD only), static routes, parameter routes such as
// /user/{id}, and regular-expression routes. Within a table the route
// registered first wins. Tables are copy-on-write and may be modified while
// the server is running.
//
// # Responses
//
// A Response either sends a fixed-length body (Send, SendStream) or a
// chunked stream (SendChunk, SendFinalChunk). Headers are written exactly
// once; a second Send reports ErrHeadersAlreadySent. A response the handler
// leaves open is completed by the server.
//
// # Listeners
//
// Start and Serve run the native HTTP/1.1 listener, which writes the chunk
// framing itself and supports keep-alive. A Server is also an http.Handler
// and can be mounted in a net/http server or router instead.
//
// # Example Usage
//
//	s, err := switchboard.NewServer(switchboard.NewSettings("127.0.0.1", 8000), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = s.Routes.PostAuthentication.Static.Add("GET", "/hello", func(c *switchboard.Context) error {
//	    return c.Response.SendString("hi")
//	})
//	log.Fatal(s.Start(ctx))
package switchboard
