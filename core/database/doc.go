// Package database opens the desktop library (a calibre metadata.db) through GORM
// and inspects its schema.
//
// # Connect
//
// Connect opens the SQLite file with a busy timeout and a single connection, since
// the host application usually holds the same file open. ReadOnly opens it with
// mode=ro, which the library indexer uses: building the index must never write.
//
// # Schema Inspection
//
// GetTableColumns wraps PRAGMA table_info. RequireColumns checks a set of
// table/column requirements at once and reports every gap in a *SchemaError;
// the library store calls it on open and the integrity feature reports it.
//
// # Usage
//
//	db, err := database.Connect(cfg.Library.Database)
//	if err != nil {
//	    return err
//	}
//	err = database.RequireColumns(db, library.RequiredSchema)
package database
