// Package coordination ties the two planes together: graph mutations go
// through the spec store under the advisory lock, claims and messages go
// through the runtime store, and every operation lands an audit event.
// It is the single entry point the CLI talks to.
package coordination
