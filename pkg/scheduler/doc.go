// Package scheduler builds the rotating meal plan of a calendar.
// It draws a random recipe for every meal slot of every day up to the next
// reset day, keeps the plan until today falls outside of it, and turns the
// plan into calendar events. Service runs the periodic update.
package scheduler
