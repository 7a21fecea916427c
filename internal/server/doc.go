// Package server provides HTTP routing, middleware and the local console gateway.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// Middleware only applies to handlers registered after it was added.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally and dispatches by method,
// answering 405 with an Allow header for unregistered methods.
//
// # Console Gateway
//
// [Gateway] is what `apostle serve` runs. It plays the role of the browser console's
// origin:
//   - /api/ is reverse proxied to the resolved backend. The outgoing transport is the
//     request authorizer, so the session credential is attached server side and the
//     browser never holds it.
//   - GET /session returns a [SessionView], which reports whether a credential is held
//     but never the credential itself.
//   - POST /session/login and POST /session/logout drive the session service. Both
//     answer 409 while another operation is pending.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
