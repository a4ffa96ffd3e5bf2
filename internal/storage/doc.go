// Package storage writes permit records to JSON export files.
//
// Each scrape of a permit is written to its own file named
// permit_<number>_<timestamp>.json in the export directory, using the flat
// interchange shape. The default location is ~/.local/share/permit-scraper/exports.
package storage
