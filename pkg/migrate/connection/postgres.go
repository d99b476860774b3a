package connection

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

func DialPostgres(dsn string, maxConc int, qlog bool) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("PG_TARGET : could not dial connection to postgres due to : %w", err)
	}
	if qlog {
		db = AddLogger(db, dsn, "postgres")
	}
	db.SetMaxOpenConns(maxConc)
	db.SetMaxIdleConns(maxConc)

	var res string
	row := db.QueryRow("SELECT 1")
	if row.Err() != nil {
		return nil, fmt.Errorf("PG_TARGET : could not ping postgres due to : %w", row.Err())
	}
	_ = row.Scan(&res)
	if res != "1" {
		return nil, fmt.Errorf("PG_TARGET : can't ping postgres via select 1")
	}
	return db, nil
}
