// Package feed keeps the family feed in sync.
//
// Store is the ordered list the UI renders. Controller ties it to the rest
// of the engine:
//
//   - pushed reaction, comment, milestone and post messages from the
//     connection manager are applied to the store as they arrive
//   - local edits (create, react, edit, delete) are applied to the store
//     first, tracked as optimistic operations, then sent to the API; the
//     server's copy replaces the optimistic one on success and the change
//     is reverted if the operation is rolled back
//   - every store change is pushed into the virtual window so positions and
//     the visible range stay current
//
// After the push connection recovers from a drop the controller reloads the
// most recent posts, since messages sent while offline are not replayed.
package feed
