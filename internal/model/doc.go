// Package model defines the feed data types shared across bumpfeed.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch, matching the wire format
//   - IDs: opaque strings assigned by the server; optimistic items carry a
//     client ID until the server assigns one
//   - Values are copied with Clone before they cross a package boundary
package model
