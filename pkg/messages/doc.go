// Package messages formats the chat replies of the meal planner bot.
package messages
