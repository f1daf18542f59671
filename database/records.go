package database

import (
	"database/sql"
	"fmt"

	"diagnosis-assistant-service/models"
)

// Stats summarizes the archived diagnosis records.
type Stats struct {
	Total    int            `json:"total"`
	ByLabel  map[string]int `json:"by_label"`
	BySource map[string]int `json:"by_source"`
}

// SaveDiagnosisRecord archives one completed pipeline run and returns the
// assigned sequence number.
func (d *Database) SaveDiagnosisRecord(record *models.DiagnosisRecord) (int, error) {
	query := `
	INSERT INTO diagnosis_records (session_id, source, label, confidence, note, annotated_image)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := d.db.Exec(query,
		record.SessionID,
		record.Source,
		record.Label,
		record.Confidence,
		record.Note,
		record.AnnotatedImage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save diagnosis record: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted seq: %w", err)
	}
	return int(seq), nil
}

// GetRecordBySeq fetches a single archived record by sequence number.
func (d *Database) GetRecordBySeq(seq int) (*models.DiagnosisRecord, error) {
	query := `
	SELECT seq, session_id, source, label, confidence, note, annotated_image, created_at
	FROM diagnosis_records
	WHERE seq = ?`

	var record models.DiagnosisRecord
	var note sql.NullString

	err := d.db.QueryRow(query, seq).Scan(
		&record.Seq,
		&record.SessionID,
		&record.Source,
		&record.Label,
		&record.Confidence,
		&note,
		&record.AnnotatedImage,
		&record.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("diagnosis record with seq %d not found", seq)
		}
		return nil, fmt.Errorf("failed to fetch diagnosis record %d: %w", seq, err)
	}

	record.Note = note.String
	return &record, nil
}

// GetSessionRecords lists the archived records for one session, oldest first.
func (d *Database) GetSessionRecords(sessionID string) ([]models.DiagnosisRecord, error) {
	query := `
	SELECT seq, session_id, source, label, confidence, note, annotated_image, created_at
	FROM diagnosis_records
	WHERE session_id = ?
	ORDER BY seq ASC`

	rows, err := d.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session records: %w", err)
	}
	defer rows.Close()

	var records []models.DiagnosisRecord
	for rows.Next() {
		var record models.DiagnosisRecord
		var note sql.NullString
		err := rows.Scan(
			&record.Seq,
			&record.SessionID,
			&record.Source,
			&record.Label,
			&record.Confidence,
			&note,
			&record.AnnotatedImage,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diagnosis record: %w", err)
		}
		record.Note = note.String
		records = append(records, record)
	}

	return records, nil
}

// GetStats aggregates totals over the archive by label and by source.
func (d *Database) GetStats() (*Stats, error) {
	stats := &Stats{
		ByLabel:  make(map[string]int),
		BySource: make(map[string]int),
	}

	if err := d.db.QueryRow(`SELECT COUNT(*) FROM diagnosis_records`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count diagnosis records: %w", err)
	}

	rows, err := d.db.Query(`SELECT label, COUNT(*) FROM diagnosis_records GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by label: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		stats.ByLabel[label] = count
	}

	srcRows, err := d.db.Query(`SELECT source, COUNT(*) FROM diagnosis_records GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by source: %w", err)
	}
	defer srcRows.Close()
	for srcRows.Next() {
		var source string
		var count int
		if err := srcRows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		stats.BySource[source] = count
	}

	return stats, nil
}
