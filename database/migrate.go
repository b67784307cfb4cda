// Package database holds the embedded schema of every module and applies it
// to the store each module is routed to.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/dtroode/observer-server/internal/model"
)

//go:embed migrations
var embedMigrations embed.FS

const migrationsDir = "migrations"

// goose keeps its settings in package state.
var gooseMu sync.Mutex

// Guard decides whether a module's schema belongs in a store.
type Guard interface {
	AuthorizeMigrationTarget(module string, store model.StoreName) bool
}

// Plan lists which modules would be applied to and skipped for store.
type Plan struct {
	Store   model.StoreName
	Apply   []string
	Skipped []string
}

// Modules returns the module labels that ship migrations, sorted.
func Modules() ([]string, error) {
	entries, err := fs.ReadDir(embedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var modules []string
	for _, e := range entries {
		if e.IsDir() {
			modules = append(modules, e.Name())
		}
	}
	sort.Strings(modules)
	return modules, nil
}

func NewPlan(store model.StoreName, guard Guard) (Plan, error) {
	modules, err := Modules()
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Store: store}
	for _, module := range modules {
		if guard.AuthorizeMigrationTarget(module, store) {
			plan.Apply = append(plan.Apply, module)
		} else {
			plan.Skipped = append(plan.Skipped, module)
		}
	}
	return plan, nil
}

// Migrate applies every module the guard routes to store. Each module keeps
// its own goose version table. A store with nothing to apply is never touched.
func Migrate(ctx context.Context, db *sql.DB, store model.StoreName, guard Guard) (Plan, error) {
	plan, err := NewPlan(store, guard)
	if err != nil {
		return Plan{}, err
	}
	if len(plan.Apply) == 0 {
		return plan, nil
	}

	if err := db.PingContext(ctx); err != nil {
		return plan, fmt.Errorf("failed to reach store %s: %w", store, err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return plan, fmt.Errorf("failed to set dialect: %w", err)
	}

	for _, module := range plan.Apply {
		goose.SetTableName(versionTable(module))
		if err := goose.UpContext(ctx, db, migrationsDir+"/"+module); err != nil {
			return plan, fmt.Errorf("failed to migrate module %s on store %s: %w", module, store, err)
		}
	}

	return plan, nil
}

func versionTable(module string) string {
	return "goose_" + module + "_version"
}
