package config

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// schema creates the record tables in insert order, then the follow-up roster
var schema = []struct {
	table string
	ddl   string
}{
	{"families", `
	CREATE TABLE IF NOT EXISTS families (
		id BIGSERIAL PRIMARY KEY,
		village TEXT NOT NULL,
		head_name TEXT NOT NULL,
		mobile TEXT NOT NULL DEFAULT '',
		house_number TEXT NOT NULL DEFAULT '',
		health_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"members", `
	CREATE TABLE IF NOT EXISTS members (
		id BIGSERIAL PRIMARY KEY,
		family_id BIGINT NOT NULL REFERENCES families(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		age INTEGER NOT NULL CHECK (age >= 0),
		gender TEXT NOT NULL,
		health_id TEXT,
		weight_kg NUMERIC NOT NULL DEFAULT 0,
		height_cm NUMERIC NOT NULL DEFAULT 0,
		bmi NUMERIC,
		systolic_bp NUMERIC NOT NULL DEFAULT 0,
		glucose NUMERIC NOT NULL DEFAULT 0,
		temperature_f NUMERIC NOT NULL DEFAULT 0,
		symptoms JSONB NOT NULL DEFAULT '{}',
		history JSONB NOT NULL DEFAULT '{}',
		missed_follow_ups INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		risk_reasons JSONB NOT NULL DEFAULT '[]',
		care_plan JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT chk_members_category CHECK (category IN ('General', 'Pregnancy', 'Child')),
		CONSTRAINT chk_members_risk CHECK (risk_level IN ('Green', 'Orange', 'Red'))
	);`},
	{"pregnancies", `
	CREATE TABLE IF NOT EXISTS pregnancies (
		id BIGSERIAL PRIMARY KEY,
		member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		gravida INTEGER NOT NULL,
		para INTEGER NOT NULL,
		trimester TEXT NOT NULL,
		lmp DATE,
		edd DATE,
		history JSONB NOT NULL DEFAULT '{}',
		vitals JSONB NOT NULL DEFAULT '{}',
		danger_signs JSONB NOT NULL DEFAULT '{}',
		compliance JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"children", `
	CREATE TABLE IF NOT EXISTS children (
		id BIGSERIAL PRIMARY KEY,
		member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		growth JSONB NOT NULL DEFAULT '{}',
		vitals JSONB NOT NULL DEFAULT '{}',
		symptoms JSONB NOT NULL DEFAULT '{}',
		compliance JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"followups", `
	CREATE TABLE IF NOT EXISTS followups (
		id TEXT PRIMARY KEY,
		patient_name TEXT NOT NULL,
		age INTEGER NOT NULL DEFAULT 0,
		village TEXT NOT NULL DEFAULT '',
		conditions JSONB NOT NULL DEFAULT '[]',
		last_visit DATE,
		due_date DATE NOT NULL,
		status TEXT,
		completed BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_families_created_at ON families(created_at)",
	"CREATE INDEX IF NOT EXISTS idx_families_village ON families(village)",
	"CREATE INDEX IF NOT EXISTS idx_members_family_id ON members(family_id)",
	"CREATE INDEX IF NOT EXISTS idx_members_risk_level ON members(risk_level)",
	"CREATE INDEX IF NOT EXISTS idx_pregnancies_member_id ON pregnancies(member_id)",
	"CREATE INDEX IF NOT EXISTS idx_children_member_id ON children(member_id)",
	"CREATE INDEX IF NOT EXISTS idx_followups_due_date ON followups(due_date)",
}

// InitDatabase creates the schema. With dropTables set the existing tables
// are dropped first; this deletes every stored registration.
func InitDatabase(db *sql.DB, dropTables bool, logger *zap.Logger) error {
	if dropTables {
		logger.Warn("dropping existing tables (DROP_TABLES_ON_STARTUP=true)")
		for i := len(schema) - 1; i >= 0; i-- {
			if _, err := db.Exec("DROP TABLE IF EXISTS " + schema[i].table + " CASCADE"); err != nil {
				logger.Warn("failed to drop table", zap.String("table", schema[i].table), zap.Error(err))
			}
		}
	}

	for _, t := range schema {
		logger.Debug("creating table", zap.String("table", t.table))
		if _, err := db.Exec(t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.table, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			logger.Warn("failed to create index", zap.String("sql", indexSQL), zap.Error(err))
		}
	}

	logger.Info("database schema initialized")
	return nil
}

// ConnectDatabase establishes a connection to PostgreSQL with retry logic
func ConnectDatabase(databaseURL string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) (*sql.DB, error) {
	var err error
	for i := 0; i < maxRetries; i++ {
		var db *sql.DB
		db, err = sql.Open("postgres", databaseURL)
		if err == nil {
			if err = db.Ping(); err == nil {
				db.SetMaxOpenConns(25)
				db.SetMaxIdleConns(5)
				db.SetConnMaxLifetime(5 * time.Minute)
				logger.Info("database connection established")
				return db, nil
			}
			db.Close()
		}
		logger.Warn("database not reachable",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
}
