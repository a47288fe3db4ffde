// Package integration ties one configured account to its coordinator.
//
// Setup performs the startup refresh and classifies a failure into one of
// three outcomes: re-authorize (vendor 401/403), fail setup (404) or retry
// later (anything else). On success it records the account's bikes in the
// device registry and starts the periodic refresh loop. Unload stops it.
package integration
