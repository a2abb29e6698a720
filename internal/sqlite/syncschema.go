package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myrjola/casefile/internal/errors"
	"github.com/myrjola/casefile/internal/random"
)

// migrateTo makes the database schema match schemaDefinition declaratively. It compares the current schema with
// schemaDefinition applied to a scratch in-memory database and then
//
//  1. drops removed tables,
//  2. creates added tables,
//  3. rebuilds changed tables with the 12-step procedure of https://www.sqlite.org/lang_altertable.html#otheralter,
//     keeping the data of the columns both versions have,
//  4. drops and recreates the indexes, triggers and views that were removed, added or changed.
//
// The changes happen in one transaction. See https://david.rothlis.net/declarative-schema-migration-for-sqlite/.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	// Pragmas and attached databases belong to a connection, so the whole migration runs on one.
	conn, err := db.ReadWrite.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "release connection", errors.SlogError(closeErr))
		}
	}()

	if _, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign key validation")
	}
	defer func() {
		if _, fkErr := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			// Carrying on without foreign keys would let the saved games drift apart.
			err = errors.Join(err, errors.Wrap(fkErr, "re-enable foreign key validation"))
		}
	}()

	target, targetDSN, err := openSchemaTarget(ctx, schemaDefinition)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "close schema target database", errors.SlogError(closeErr))
		}
	}()
	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", targetDSN); err != nil {
		return errors.Wrap(err, "attach schema target database")
	}
	defer func() {
		if _, detachErr := conn.ExecContext(ctx, "DETACH DATABASE schemaTarget"); detachErr != nil {
			err = errors.Join(err, errors.Wrap(detachErr, "detach schema target database"))
		}
	}()

	return db.migrateInTx(ctx, conn)
}

func (db *Database) migrateInTx(ctx context.Context, conn *sql.Conn) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "start transaction")
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			db.logger.LogAttrs(ctx, slog.LevelError, "roll back migration", errors.SlogError(rollbackErr))
		}
	}()

	steps := []struct {
		name string
		run  func(context.Context, *sql.Tx) error
	}{
		{"migrate tables", db.migrateTables},
		{"migrate indexes, triggers and views", db.migrateSchemaObjects},
		{"check foreign keys", checkForeignKeys},
	}
	for _, step := range steps {
		if err = step.run(ctx, tx); err != nil {
			return errors.Wrap(err, step.name)
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// openSchemaTarget applies schemaDefinition to a fresh shared in-memory database and returns it with its DSN.
func openSchemaTarget(ctx context.Context, schemaDefinition string) (*sql.DB, string, error) {
	var nameLength uint = 20
	name, err := random.Letters(nameLength)
	if err != nil {
		return nil, "", errors.Wrap(err, "generate schema target name")
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, "", errors.Wrap(err, "open schema target database")
	}
	// The in-memory database lives as long as a connection to it does.
	target.SetMaxIdleConns(1)
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		_ = target.Close()
		return nil, "", errors.Wrap(err, "apply schema to target database")
	}
	return target, dsn, nil
}

func checkForeignKeys(ctx context.Context, tx *sql.Tx) error {
	violations, err := queryAll(ctx, tx, scanString, "SELECT \"table\" FROM pragma_foreign_key_check")
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return errors.New("foreign key violations", slog.Any("tables", violations))
	}
	return nil
}

type changedTable struct {
	name       string
	currentSQL string
	newSQL     string
}

// migrateTables drops, creates and rebuilds tables until they match the target schema.
func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	deleted, err := queryAll(ctx, tx, scanString, `SELECT current.name
FROM sqlite_schema AS current
         LEFT JOIN schemaTarget.sqlite_schema AS target ON current.name = target.name AND current.type = target.type
WHERE current.type = 'table' AND target.type IS NULL AND current.name NOT LIKE 'sqlite_%';`)
	if err != nil {
		return errors.Wrap(err, "query deleted tables")
	}
	for _, table := range deleted {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q;", table)); err != nil {
			return errors.Wrap(err, "drop table", slog.String("table", table))
		}
	}

	created, err := queryAll(ctx, tx, scanString, `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
         LEFT JOIN sqlite_schema AS current ON current.name = target.name AND current.type = target.type
WHERE target.type = 'table' AND current.type IS NULL AND target.name NOT LIKE 'sqlite_%';`)
	if err != nil {
		return errors.Wrap(err, "query new tables")
	}
	for _, query := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", query))
		if _, err = tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "create table")
		}
	}

	changed, err := queryAll(ctx, tx, func(rows *sql.Rows) (changedTable, error) {
		var t changedTable
		return t, rows.Scan(&t.name, &t.currentSQL, &t.newSQL)
	}, `SELECT current.name, current.sql, target.sql
FROM sqlite_schema AS current
         JOIN schemaTarget.sqlite_schema AS target ON current.name = target.name AND current.type = target.type
WHERE current.type = 'table' AND current.name NOT LIKE 'sqlite_%' AND current.sql <> target.sql;`)
	if err != nil {
		return errors.Wrap(err, "query changed tables")
	}
	for _, table := range changed {
		if err = db.rebuildTable(ctx, tx, table); err != nil {
			return errors.Wrap(err, "rebuild table", slog.String("table", table.name))
		}
	}
	return nil
}

// rebuildTable creates the new version of table under a temporary name, copies the common columns over, drops the
// old version and renames the new one in its place.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, table changedTable) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
		slog.String("table", table.name),
		slog.String("current_sql", table.currentSQL),
		slog.String("new_sql", table.newSQL))

	tempName := table.name + "_migration_temp"
	createTemp := strings.Replace(table.newSQL, table.name, tempName, 1)
	// Column names are quoted because some of them, like "order", are keywords.
	common, err := queryAll(ctx, tx, scanString, `SELECT '"' || target.name || '"'
FROM PRAGMA_TABLE_INFO(:table_name) AS current
         JOIN PRAGMA_TABLE_INFO(:table_name, 'schemaTarget') AS target ON target.name = current.name;`,
		sql.Named("table_name", table.name))
	if err != nil {
		return errors.Wrap(err, "query common columns")
	}
	columns := strings.Join(common, ", ")

	for _, query := range []string{
		createTemp,
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s;", tempName, columns, columns, table.name),
		fmt.Sprintf("DROP TABLE %s;", table.name),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", tempName, table.name),
	} {
		if _, err = tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "exec", slog.String("query", query))
		}
	}
	return nil
}

// migrateSchemaObjects drops the indexes, triggers and views that were removed or changed and creates the ones
// missing from the current schema. Objects of rebuilt tables are gone by now and get recreated too.
func (db *Database) migrateSchemaObjects(ctx context.Context, tx *sql.Tx) error {
	type schemaObject struct {
		kind string
		name string
	}
	// Automatic indexes have no SQL and are managed by SQLite.
	stale, err := queryAll(ctx, tx, func(rows *sql.Rows) (schemaObject, error) {
		var obj schemaObject
		return obj, rows.Scan(&obj.kind, &obj.name)
	}, `SELECT current.type, current.name
FROM sqlite_schema AS current
         LEFT JOIN schemaTarget.sqlite_schema AS target ON current.name = target.name AND current.type = target.type
WHERE current.type IN ('index', 'trigger', 'view')
  AND current.sql IS NOT NULL
  AND (target.sql IS NULL OR current.sql <> target.sql);`)
	if err != nil {
		return errors.Wrap(err, "query stale objects")
	}
	for _, obj := range stale {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping schema object",
			slog.String("type", obj.kind), slog.String("name", obj.name))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP %s IF EXISTS %q;", strings.ToUpper(obj.kind), obj.name)); err != nil {
			return errors.Wrap(err, "drop schema object", slog.String("name", obj.name))
		}
	}

	created, err := queryAll(ctx, tx, scanString, `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
         LEFT JOIN sqlite_schema AS current ON current.name = target.name AND current.type = target.type
WHERE target.type IN ('index', 'trigger', 'view') AND target.sql IS NOT NULL AND current.type IS NULL
ORDER BY CASE target.type WHEN 'view' THEN 0 WHEN 'index' THEN 1 ELSE 2 END;`)
	if err != nil {
		return errors.Wrap(err, "query new schema objects")
	}
	for _, query := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating schema object", slog.String("query", query))
		if _, err = tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "create schema object", slog.String("query", query))
		}
	}
	return nil
}

func scanString(rows *sql.Rows) (string, error) {
	var s string
	return s, rows.Scan(&s)
}

// queryAll runs query and scans every row with scan.
func queryAll[T any](
	ctx context.Context,
	tx *sql.Tx,
	scan func(*sql.Rows) (T, error),
	query string,
	args ...any,
) (results []T, err error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, errors.Wrap(closeErr, "close rows"))
		}
	}()
	for rows.Next() {
		var result T
		if result, err = scan(rows); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		results = append(results, result)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return results, nil
}
