// Package errors provides structured, coded errors for the render
// pipeline. Every failure surface has a registered code with a stable
// message and a documentation link, so an operator can look up what a
// production error means without reading source.
package errors
