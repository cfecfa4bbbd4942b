// Package shared holds helpers used by more than one package.
//
// testutil provides a buffered slog handler for asserting on log output and
// loan portfolio fixtures (generated samples rendered as CSV, column
// removal) for pipeline and HTTP tests.
package shared
