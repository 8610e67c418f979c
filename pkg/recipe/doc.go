// Package recipe loads recipe collections exported by MyCookBook and renders
// individual recipes as markdown. The Store is built once from a zip archive
// and only read afterwards.
package recipe
