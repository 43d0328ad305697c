// Package migrations holds the schema migrations of the shop database.
// Each file registers its migrations from init(); cmd/shop imports this
// package for the side effect.
package migrations
