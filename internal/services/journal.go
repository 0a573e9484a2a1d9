package services

import (
	"database/sql"
	"time"

	"github.com/pandeptwidyaop/xwhep-remote/internal/database"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

// JournalService keeps a local record of the works submitted by this client.
type JournalService struct {
	db *database.DB
}

// NewJournalService creates a new JournalService instance.
func NewJournalService(db *database.DB) *JournalService {
	return &JournalService{db: db}
}

// Record inserts a new submission.
func (s *JournalService) Record(sub *models.Submission) error {
	_, err := s.db.Exec(
		`INSERT INTO submissions (work_uid, app_name, app_uid, cmdline, stdin_uid, tag, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.WorkUID, sub.AppName, sub.AppUID, sub.Cmdline, sub.StdinUID, sub.Tag, string(sub.Status),
	)
	return err
}

// SetStdin records the stdin data created for a work.
func (s *JournalService) SetStdin(workUID, stdinUID string) error {
	return s.exec(workUID, "UPDATE submissions SET stdin_uid = ?, updated_at = ? WHERE work_uid = ?", stdinUID)
}

// SetStatus records the last known status of a work and an optional error.
func (s *JournalService) SetStatus(workUID string, status models.WorkStatus, errMsg string) error {
	_, err := s.db.Exec(
		"UPDATE submissions SET status = ?, error = ?, updated_at = ? WHERE work_uid = ?",
		string(status), errMsg, time.Now().UTC(), workUID,
	)
	return err
}

// SetResult records the local result path of a work.
func (s *JournalService) SetResult(workUID, path string) error {
	return s.exec(workUID, "UPDATE submissions SET result_path = ?, updated_at = ? WHERE work_uid = ?", path)
}

func (s *JournalService) exec(workUID, query, value string) error {
	res, err := s.db.Exec(query, value, time.Now().UTC(), workUID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

// Get retrieves the submission of a work.
func (s *JournalService) Get(workUID string) (*models.Submission, error) {
	row := s.db.QueryRow(
		`SELECT work_uid, app_name, app_uid, cmdline, stdin_uid, tag, status, result_path, error, created_at, updated_at
		 FROM submissions WHERE work_uid = ?`,
		workUID,
	)

	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, ErrSubmissionNotFound
	}
	return sub, err
}

// List returns the most recent submissions, newest first.
func (s *JournalService) List(limit int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT work_uid, app_name, app_uid, cmdline, stdin_uid, tag, status, result_path, error, created_at, updated_at
		 FROM submissions ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// Delete removes the submission of a work.
func (s *JournalService) Delete(workUID string) error {
	res, err := s.db.Exec("DELETE FROM submissions WHERE work_uid = ?", workUID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub    models.Submission
		status string
	)
	err := row.Scan(
		&sub.WorkUID, &sub.AppName, &sub.AppUID, &sub.Cmdline, &sub.StdinUID, &sub.Tag,
		&status, &sub.ResultPath, &sub.Error, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Status = models.WorkStatus(status)
	return &sub, nil
}
