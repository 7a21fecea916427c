// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides the console screens:
//  1. [LoginView] : email and password form, disabled while a session operation is pending
//  2. [DashboardView] : stats cards with the top category and genre
//  3. [SongsView] : filterable song list with hide, unhide and delete
//  4. [ConfirmView] and [ModerateView] : confirm a moderation action and follow its progress
//  5. [SettingsView] : the signed-in profile and logout
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Session changes arrive through a subscription, so a logout from any screen returns to the login form.
//
// Every view switch starts a new generation. Fetches carry the generation they were issued under and
// results from an earlier one are dropped, so leaving a view while it loads never overwrites the next one.
//
// Opening the dashboard without a stored credential shows a warning once per visit instead of fetching.
package ui
