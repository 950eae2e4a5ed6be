// Package models contains GORM-specific persistence models that map to
// database tables. They exist for the taxonomy aggregates, whose domain
// types carry no ORM tags; mappers convert between the two shapes.
//
// Aggregates that already embed gorm-tagged base types (catalog, stock,
// syncrun, channel) persist directly and need no model here.
package models
