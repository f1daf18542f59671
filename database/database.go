package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"diagnosis-assistant-service/config"
)

// Database wraps the MySQL connection used for the diagnosis record archive.
type Database struct {
	db *sql.DB
}

// NewDatabase opens the MySQL connection and verifies it with a bounded
// backoff retry. The service fails startup rather than running half-wired.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry, capped so a dead
	// database surfaces as a startup error instead of an infinite loop.
	waitInterval := 1 * time.Second
	var pingErr error
	for attempt := 0; attempt < 6; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			break
		}
		log.Printf("Database connection failed, retrying in %v: %v", waitInterval, pingErr)
		time.Sleep(waitInterval)
		waitInterval *= 2
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", pingErr)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying sql.DB for direct queries
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// CreateDiagnosisRecordsTable creates the diagnosis_records table if it
// doesn't exist.
func (d *Database) CreateDiagnosisRecordsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS diagnosis_records (
		seq INT NOT NULL AUTO_INCREMENT,
		session_id VARCHAR(36) NOT NULL,
		source VARCHAR(64) NOT NULL,
		label VARCHAR(64) NOT NULL,
		confidence FLOAT NOT NULL,
		note TEXT,
		annotated_image LONGBLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (seq),
		INDEX session_id_index (session_id),
		INDEX label_index (label),
		INDEX source_index (source)
	)`

	_, err := d.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create diagnosis_records table: %w", err)
	}

	log.Println("diagnosis_records table created/verified successfully")
	return nil
}
