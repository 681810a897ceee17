// Package observability records board events as JSON Lines, derives activity
// metrics from them and raises alerts about overdue and urgent work.
package observability
