// Package api provides the HTTP client for the family feed REST API.
//
// The client sends the mutations a user makes in the feed (new posts, edits,
// deletions, reactions) and pages through the feed for the initial load.
// Realtime updates arrive separately over the push socket.
//
// Endpoints:
//   - GET    /feed                      page through the feed
//   - POST   /posts                     create a post
//   - PATCH  /posts/{id}                edit a post
//   - DELETE /posts/{id}                delete a post
//   - POST   /posts/{id}/reactions      add a reaction
//   - DELETE /posts/{id}/reactions/{e}  remove a reaction
package api
