// Package cli implements the permit-scraper command-line interface.
//
// The Cobra command tree wires configuration, the portal session, the
// scraper, the permit store, flat-file exports, spreadsheet export, metrics
// and alerting together. Commands write text or JSON to stdout and log to
// stderr.
package cli
