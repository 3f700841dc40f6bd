// Package window computes which rows of a long feed are on screen.
//
// A Window maps an ordered item list to vertical positions using estimated
// heights that are replaced by measured ones as the renderer reports them.
// Only the visible slice, padded by a buffer margin, needs to be rendered.
package window
