// Package dataset turns uploaded loan portfolio files into typed borrower
// records.
//
// A portfolio arrives as a CSV or XLSX table. Before any modelling happens the
// table goes through two gates:
//
//	MissingColumns  - every required column must be present in the header
//	CoerceFeatures  - every feature cell must parse as a finite number
//
// Both gates are pure. They report problems through SchemaError and
// CoercionError so callers can classify the failure without string matching.
//
// GenerateSample builds a seeded synthetic portfolio with the same shape as a
// real upload, used by the dashboard's "use sample data" path and by tests.
package dataset
