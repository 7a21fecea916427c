// Package models defines the domain entities shared by the apostle admin console.
//
// The package contains lightweight Data Transfer Objects mirroring the remote admin API:
//   - [Principal] : the signed-in administrator
//   - [Stats] : dashboard totals with top categories and genres
//   - [Song], [Category], [Genre], [Playlist] : moderated content
//
// Content types accept the API's legacy "_id" field in place of "id" when decoding.
package models
