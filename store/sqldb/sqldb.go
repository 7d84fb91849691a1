// Package sqldb provides a SQL storage backend (SQLite, PostgreSQL, MySQL) for user records.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/store"
)

// Supported values for the db.type setting
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64  `bun:"id,pk,autoincrement"`
	Username     string `bun:"username,notnull,unique"`
	PasswordHash string `bun:"password_hash,notnull"`
	IsAdmin      bool   `bun:"is_admin,notnull"`
	// JSON object, e.g. {"upload_runs": true}
	Permissions string `bun:"permissions,type:text,notnull"`
}

// SQLDB - Representation of a SQL database backend
type SQLDB struct {
	bun    *bun.DB
	dbType string
}

// New opens the database and returns a SQLDB. Call Init to create the schema.
func New(dbType string, dsn string) (*SQLDB, error) {
	driverName := dbType
	switch dbType {
	case SQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory for SQLite: %w", err)
			}
		}
	case Postgres:
		// pgx stdlib registers itself as "pgx"
		driverName = "pgx"
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		dsn = cfg.FormatDSN()
	default:
		return nil, fmt.Errorf("unsupported database type: %q", dbType)
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to ":memory:" is a separate database
	if dbType == SQLite && dsn == ":memory:" {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(10)
		conn.SetConnMaxLifetime(time.Minute * 3)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ans := SQLDB{
		bun:    bun.NewDB(conn, dialectFor(dbType)),
		dbType: dbType,
	}
	return &ans, nil
}

func dialectFor(dbType string) schema.Dialect {
	switch dbType {
	case Postgres:
		return pgdialect.New()
	case MySQL:
		return mysqldialect.New()
	default:
		return sqlitedialect.New()
	}
}

// Init creates the users table if it does not exist
func (o *SQLDB) Init() error {
	ctx := context.Background()
	if _, err := o.bun.NewCreateTable().Model((*userRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	log.Debugf("Database schema for %s initialized", o.dbType)
	return nil
}

// GetUsers returns all users ordered by id
func (o *SQLDB) GetUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := o.bun.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	users := make([]model.User, 0, len(rows))
	for _, r := range rows {
		u, err := r.toModel()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (o *SQLDB) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return o.getUser(ctx, "id = ?", id)
}

func (o *SQLDB) GetUserByName(ctx context.Context, username string) (model.User, error) {
	return o.getUser(ctx, "username = ?", username)
}

func (o *SQLDB) getUser(ctx context.Context, where string, arg interface{}) (model.User, error) {
	var row userRow
	err := o.bun.NewSelect().Model(&row).Where(where, arg).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("error scanning user: %w", err)
	}
	return row.toModel()
}

// CreateUser inserts user; the generated id is written back to user.ID
func (o *SQLDB) CreateUser(ctx context.Context, user *model.User) error {
	row, err := fromModel(*user)
	if err != nil {
		return err
	}
	if _, err := o.bun.NewInsert().Model(&row).Exec(ctx); err != nil {
		return mapDBError(err)
	}
	user.ID = row.ID
	return nil
}

func (o *SQLDB) SaveUser(ctx context.Context, user model.User) error {
	row, err := fromModel(user)
	if err != nil {
		return err
	}
	if _, err := o.bun.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
		return mapDBError(err)
	}
	return nil
}

func (o *SQLDB) DeleteUser(ctx context.Context, id int64) error {
	res, err := o.bun.NewDelete().Model((*userRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (o *SQLDB) Close() error {
	return o.bun.Close()
}

func (r userRow) toModel() (model.User, error) {
	perms := model.Permissions{}
	if r.Permissions != "" {
		if err := json.Unmarshal([]byte(r.Permissions), &perms); err != nil {
			return model.User{}, fmt.Errorf("cannot decode permissions of user %d: %w", r.ID, err)
		}
	}
	return model.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Admin:        r.IsAdmin,
		Permissions:  perms,
	}, nil
}

func fromModel(u model.User) (userRow, error) {
	perms := u.Permissions
	if perms == nil {
		perms = model.Permissions{}
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return userRow{}, fmt.Errorf("cannot encode permissions: %w", err)
	}
	return userRow{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.Admin,
		Permissions:  string(b),
	}, nil
}

// mapDBError turns unique violations from any of the drivers into
// store.ErrUsernameTaken. MySQL 1062, Postgres 23505, SQLite "UNIQUE constraint failed".
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	le := strings.ToLower(err.Error())
	if strings.Contains(le, "duplicate") || strings.Contains(le, "unique") || strings.Contains(le, "23505") || strings.Contains(le, "1062") {
		return store.ErrUsernameTaken
	}
	return err
}
