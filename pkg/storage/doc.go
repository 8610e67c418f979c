// Package storage provides persistent storage for the meal planner.
// It uses BadgerDB as the embedded database and keeps plan snapshots and
// serving statistics as JSON values.
package storage
