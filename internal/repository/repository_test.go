package repository_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const postgresImage = "postgres:17.6-alpine3.22"

// testDB is a throwaway Postgres with every migration applied.
type testDB struct {
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
}

func startTestDB(ctx context.Context) (*testDB, error) {
	scripts, err := filepath.Glob("../migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("filepath.Glob: %w", err)
	}
	if len(scripts) == 0 {
		return nil, errors.New("no migrations found")
	}
	sort.Strings(scripts)

	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("cartsync"),
		postgres.WithUsername("cartsync"),
		postgres.WithPassword("cartsync"),
		postgres.WithInitScripts(scripts...),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres.Run: %w", err)
	}

	db := &testDB{container: container}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, errors.Join(fmt.Errorf("container.ConnectionString: %w", err), db.close(ctx))
	}

	db.pool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("pgxpool.New: %w", err), db.close(ctx))
	}

	if err := db.pool.Ping(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("pool.Ping: %w", err), db.close(ctx))
	}

	return db, nil
}

func (db *testDB) close(ctx context.Context) error {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.container == nil {
		return nil
	}
	if err := db.container.Terminate(ctx); err != nil {
		return fmt.Errorf("container.Terminate: %w", err)
	}
	return nil
}
