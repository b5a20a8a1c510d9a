// Package testdb provides utilities for tests that need a real PostgreSQL
// database.
//
// Tests call GetTestDB, which skips the test unless DATABASE_URL is set,
// connects, and migrates the schema to the latest version. WithTx runs a test
// body inside a transaction that is always rolled back, so tests leave no
// rows behind and may run in parallel:
//
//	db := testdb.GetTestDB(t)
//	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//		s := postgres.NewPostgresTaskStore(tx, logger)
//		...
//	})
package testdb
