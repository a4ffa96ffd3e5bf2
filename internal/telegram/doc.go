// Package telegram posts permit alerts to a chat through the Telegram Bot
// API. A Client needs a bot token issued by @BotFather and the numeric or
// @-prefixed ID of the receiving chat.
package telegram
