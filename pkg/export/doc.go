// Package export renders the day's planned recipes to an HTML page on disk.
package export
