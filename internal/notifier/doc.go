// Package notifier delivers operational alerts about permit scrapes.
//
// Alerts are raised when a scrape fails, when a job value is flagged as
// implausibly high, and when a permit's status changes between scrapes.
// They can be printed (dry run), posted to a Slack incoming webhook, or sent
// to a Telegram chat.
package notifier
