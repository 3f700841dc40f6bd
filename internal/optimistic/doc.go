// Package optimistic tracks user mutations that have been applied locally
// before the server confirmed them.
//
// Every mutation gets a unique operation ID on Apply and then resolves
// exactly once: Commit when the server accepts it, Rollback when it fails or
// times out. Rolled-back operations stay in the failed set until cleared.
// Retry re-runs the network call with a linear delay and rolls back once
// the retry budget is spent.
package optimistic
