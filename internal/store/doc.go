// Package store provides the user directory backing authentication.
//
// # Architecture
//
// UserStore is the only interface. SQLiteStore implements it on
// modernc.org/sqlite; MockStore implements it in memory for tests of
// packages that only need a directory.
//
// # Data Model
//
//   - User: numeric ID, unique case-sensitive username, stored password
//     credential, full name, role (admin or employee)
//
// The stored credential is opaque to this package. It is produced and
// checked by the password package.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Database file locations:
//
//   - Production: /var/lib/timecard/timecard.db
//   - Development: ~/.local/share/timecard/timecard.db
//   - Testing: :memory: (pinned to a single connection)
//
// # Error Handling
//
//   - ErrUserNotFound: no user with that ID or username
//   - ErrUsernameExists: username already taken
//
// All methods accept context.Context for cancellation support.
//
// # Migrations
//
// The schema is created with CREATE TABLE IF NOT EXISTS. Columns added after
// the first release are applied by runMigrations, which checks
// pragma_table_info before each ALTER TABLE so it is safe to run on every
// start.
package store
