// Package build turns a directory of photo files and a template catalog
// into the delimited output file the print vendor consumes.
//
// This package is the heart of the pipeline, containing all synthesis logic
// independent of any transport or storage layer. It can be driven by web
// handlers, CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Analysis: a scan of a photo tree, classifying each image file into a
//     regular player shot, a manual entry needing operator attention, or a
//     team-level special shot.
//   - Pose Map: an index from (team, player) to pose to file name, consulted
//     when a template composes two poses of the same player.
//   - Row Synthesis: [BuildRows], the pure function producing the final
//     ordered row set from photos plus a [catalog.Snapshot].
//   - Rebuilds: plans that re-derive the template catalog from a previously
//     generated file and re-run synthesis against fresh photos.
//
// # Synthesis
//
// Rows are generated per team, teams in sorted order. Individual templates
// come first, then one blank spacer row, then sports-mate rows. The row
// order is fully deterministic: the engine imposes its own sorts and never
// relies on directory enumeration order.
//
// Missing data never aborts a build. A photo without a parseable name gets
// sentinel values flagging the row for correction; an unresolvable second
// pose gets a sentinel plus a counter surfaced in the result. The output is
// always a complete, reviewable file.
//
// # Schema
//
// Output columns are fixed and matched by name, not position. [NewSchema]
// validates the header list once per run and fails fast when a required
// column is absent, so a malformed header can never silently misalign every
// generated row.
package build
