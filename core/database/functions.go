package database

import (
	"database/sql"
	"sync"

	"marvin-sync/core/utils"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// DriverName is the sqlite driver with the SQL functions calibre's triggers call.
const DriverName = "sqlite3_calibre"

var registerOnce sync.Once

// registerDriver installs title_sort and uuid4 on every connection, so
// inserts and updates fire calibre's triggers without failing.
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc("title_sort", utils.TitleSort, true); err != nil {
					return err
				}
				return conn.RegisterFunc("uuid4", uuid.NewString, false)
			},
		})
	})
}
