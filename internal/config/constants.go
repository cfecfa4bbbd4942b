package config

import "time"

// Application constants
const (
	AppName    = "loan-recovery"
	AppVersion = "1.0.0"
)

// Defaults shared by the server, the CLI and tests
const (
	DefaultSeed           = 42
	DefaultSampleRows     = 100
	DefaultRateLimit      = 100 // requests per second
	DefaultBurstSize      = 50
	DefaultRequestTimeout = 2 * time.Minute
	DefaultMaxUploadBytes = 32 << 20 // 32MB

	DefaultCSVFileName  = "borrower_risk_report.csv"
	DefaultXLSXFileName = "borrower_risk_report.xlsx"
)
