// Package server is the HTTP and WebSocket surface of the render
// pipeline.
//
// Views are registered by name with their route descriptor and
// descriptor spec. GET /view/{name} renders a view and responds with
// a binary snapshot frame; GET /ws/{name} opens a session that
// receives a snapshot followed by navigation diff frames as the
// client refreshes or navigates. Activation bundles are served under
// /bundles/, and POST /invalidate lets external data-mutation events
// evict cache entries by key or tag.
package server
