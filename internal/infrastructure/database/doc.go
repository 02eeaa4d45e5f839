// Package database provides SQLite connectivity for the scene engine.
//
// This package manages:
//   - The connection, with WAL mode and busy timeout pragmas
//   - Versioned schema migrations read from an fs.FS
//   - Health checks
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
package database
