// Package exporter renders the borrower risk report for download.
//
// CSVWriter produces the flat report, one line per scored borrower of the
// test partition, optionally prefixed with a UTF-8 BOM for Excel.
// XLSXWriter produces a workbook with the same report plus a per-segment
// summary sheet. Exporter picks the writer by Format and names the file
// according to config.ExportConfig.
package exporter
