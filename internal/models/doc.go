// Package models defines domain entities shared across the setlist workflow engine.
//
// The package contains two categories of types:
//
// 1. Catalog handles: immutable references into the music catalog
//   - [TrackRef] : a resolved track (id, name, artist, album, url, uri)
//   - [PlaylistRef] : a committed playlist
//
// 2. Workflow entities: the state the engine owns and persists
//   - [ParsedSetlist] / [SongEntry] : structured setlist extracted from free text
//   - [SongMatch] : per-song resolution (stored version, candidates, or neither)
//   - [Workflow] : one in-flight approval process with selections and notification handles
//   - [TenantConfig] / [ExtractionPattern] : per-tenant configuration
//
// Affordances ([Affordance], [AffordancesFor]) describe selection controls in a
// UI-agnostic way; the notification gateway decides how to render them.
package models
