// Package session holds the operator's current session: start or attach,
// list and delete its instances, and close it on exit.
package session
