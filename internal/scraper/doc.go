// Package scraper runs a scraping session against the permit portal.
//
// A Scraper owns one browser.Page for its whole lifetime. Open logs in
// before anything is scraped and releases the page if that fails; Close
// releases it afterwards. Permits are scraped one at a time, and each scrape
// reports success or failure, duration, error count, and completeness to a
// metrics.Recorder.
package scraper
