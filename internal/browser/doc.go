// Package browser drives headless Chrome through go-rod.
//
// A Browser owns one Chrome process. Open loads a page and returns a
// Viewport, which exposes the geometry and scrolling primitives anchor
// navigation needs, plus a screenshot for the snapshot command.
package browser
