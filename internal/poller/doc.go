// Package poller keeps the feed fresh over REST while the push socket is
// down.
//
// Each tick checks the connection state. A tick while the socket is
// connected is skipped; any other tick reloads the most recent posts.
package poller
