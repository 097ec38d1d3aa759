// Package store defines the persistence interfaces of the suggestion system
// and the transaction helper shared by their implementations. Business
// logic depends on these interfaces only, never on a concrete database.
package store
