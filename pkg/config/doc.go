// Package config loads the meal planner configuration: process settings from
// the environment (and an optional .env file) and the calendar definition from
// a YAML file.
package config
