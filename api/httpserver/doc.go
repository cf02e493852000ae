// Package httpserver exposes the anonymous publishing pipeline and the
// read feeds over a local HTTP API.
//
// The server wires component handlers into a shared chi router behind
// standard middleware, and adds health and drain endpoints for liveness
// probes. Handlers are registered through the RouteRegistrar interface so
// the server stays agnostic of the components it hosts.
package httpserver
