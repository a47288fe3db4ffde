// Package database provides SQLite connectivity for the bridge.
//
// The database holds the bike registry only: identity and descriptive
// metadata of bikes seen on the account. Telemetry is never written here.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are plain SQL files named YYYYMMDD_HHMMSS_description.up.sql
// with an optional matching .down.sql, applied oldest first, one transaction
// each.
package database
