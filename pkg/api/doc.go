// Package api serves the meal calendar over HTTP: the planned events, the
// current event, the raw plan, the recipe collection and serving statistics.
package api
