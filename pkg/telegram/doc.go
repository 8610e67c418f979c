// Package telegram exposes the meal plan through a Telegram bot.
//
// The bot answers /today, /week, /recipe <title> and /stats. Today's meals
// come with inline buttons that open the planned recipe.
package telegram
