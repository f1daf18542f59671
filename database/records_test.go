package database

import (
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagnosis-assistant-service/models"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
	d    *Database
)

func setUp() {
	db, mock, _ = sqlmock.New()
	d = NewWithDB(db)
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func TestSaveDiagnosisRecord(t *testing.T) {
	it(func() {
		record := &models.DiagnosisRecord{
			SessionID:      "11111111-2222-3333-4444-555555555555",
			Source:         "Classifier",
			Label:          models.LabelThyroidCancer,
			Confidence:     87.23,
			Note:           "drafted note",
			AnnotatedImage: []byte{0xff, 0xd8},
		}

		mock.ExpectExec("INSERT INTO diagnosis_records").
			WithArgs(record.SessionID, record.Source, record.Label, record.Confidence, record.Note, record.AnnotatedImage).
			WillReturnResult(sqlmock.NewResult(7, 1))

		seq, err := d.SaveDiagnosisRecord(record)

		require.NoError(t, err)
		assert.Equal(t, 7, seq)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSaveDiagnosisRecordExecError(t *testing.T) {
	it(func() {
		mock.ExpectExec("INSERT INTO diagnosis_records").
			WillReturnError(sql.ErrConnDone)

		_, err := d.SaveDiagnosisRecord(&models.DiagnosisRecord{SessionID: "s"})

		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetRecordBySeq(t *testing.T) {
	it(func() {
		created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
		rows := sqlmock.NewRows([]string{
			"seq", "session_id", "source", "label", "confidence", "note", "annotated_image", "created_at",
		}).AddRow(3, "sess-1", "Detector", models.LabelBrainTumor, 77.4, "note text", []byte{0xff, 0xd8}, created)

		mock.ExpectQuery("SELECT (.+) FROM diagnosis_records").
			WithArgs(3).
			WillReturnRows(rows)

		record, err := d.GetRecordBySeq(3)

		require.NoError(t, err)
		assert.Equal(t, 3, record.Seq)
		assert.Equal(t, "sess-1", record.SessionID)
		assert.Equal(t, models.LabelBrainTumor, record.Label)
		assert.Equal(t, 77.4, record.Confidence)
		assert.Equal(t, "note text", record.Note)
		assert.Equal(t, created, record.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetRecordBySeqNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT (.+) FROM diagnosis_records").
			WithArgs(99).
			WillReturnError(sql.ErrNoRows)

		record, err := d.GetRecordBySeq(99)

		assert.Nil(t, record)
		assert.ErrorContains(t, err, "not found")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetSessionRecords(t *testing.T) {
	it(func() {
		created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
		rows := sqlmock.NewRows([]string{
			"seq", "session_id", "source", "label", "confidence", "note", "annotated_image", "created_at",
		}).
			AddRow(1, "sess-1", "Classifier", models.LabelNormal, 12.5, "n1", []byte{}, created).
			AddRow(2, "sess-1", "Classifier", models.LabelThyroidCancer, 91.0, "n2", []byte{}, created)

		mock.ExpectQuery("SELECT (.+) FROM diagnosis_records").
			WithArgs("sess-1").
			WillReturnRows(rows)

		records, err := d.GetSessionRecords("sess-1")

		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, models.LabelNormal, records[0].Label)
		assert.Equal(t, models.LabelThyroidCancer, records[1].Label)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetStats(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM diagnosis_records").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
		mock.ExpectQuery("SELECT label, COUNT\\(\\*\\) FROM diagnosis_records GROUP BY label").
			WillReturnRows(sqlmock.NewRows([]string{"label", "count"}).
				AddRow(models.LabelNormal, 3).
				AddRow(models.LabelThyroidCancer, 2))
		mock.ExpectQuery("SELECT source, COUNT\\(\\*\\) FROM diagnosis_records GROUP BY source").
			WillReturnRows(sqlmock.NewRows([]string{"source", "count"}).
				AddRow("Classifier", 4).
				AddRow("Stub", 1))

		stats, err := d.GetStats()

		require.NoError(t, err)
		assert.Equal(t, 5, stats.Total)
		assert.Equal(t, 3, stats.ByLabel[models.LabelNormal])
		assert.Equal(t, 2, stats.ByLabel[models.LabelThyroidCancer])
		assert.Equal(t, 4, stats.BySource["Classifier"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateDiagnosisRecordsTable(t *testing.T) {
	it(func() {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS diagnosis_records").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := d.CreateDiagnosisRecordsTable()

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
