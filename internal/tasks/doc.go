// Package tasks runs bulk console operations with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines three operations:
//
//  1. [Engine.Moderate] : hide, unhide or delete many songs
//     - Spreads requests over a bounded worker pool
//     - Paces requests with a shared rate limiter
//     - Records per-song failures without aborting the run
//
//  2. [Engine.SelectSongs] : resolve songs by title search and visibility
//
//  3. [Engine.Dump] : fetch raw data from every content endpoint
//     - Stats, songs, categories, genres, playlists
//     - Failed endpoints are collected instead of aborting
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Implementation
//
// [ContentEngine] implements [Engine] with dependencies on:
//   - [ContentClient] : typed content endpoints ([services.Client])
//   - [APIClient] : raw GET access for dumps
package tasks
