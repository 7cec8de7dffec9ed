// Package prometheus holds the Prometheus implementations of the metrics
// interfaces declared by the dispatch, connection and probe packages.
//
// Every constructor takes the registerer to use and returns nil when it is
// nil. Every method is safe to call on a nil receiver, so a disabled
// collector costs nothing.
package prometheus
