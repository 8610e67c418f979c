// Package models defines the meal slot, daily plan and calendar event types
// shared by the scheduler, the HTTP API and the bot.
package models
