// Package bunstore implements store.Store on PostgreSQL via the Bun ORM.
// This is the durability backend for production: claims ride FOR UPDATE
// SKIP LOCKED so any number of stepper processes can poll the same table,
// and step completion is a compare-and-set on the step token.
//
// The caller owns the *bun.DB lifecycle:
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	s := bunstore.New(db)
//	if err := s.Migrate(ctx); err != nil { ... }
package bunstore
