package cassandra

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"vibelink-backend/internal/domain"
)

// ReportRepository handles the append-only report log in Cassandra.
// Reports are immutable once created; the partition key is the reported
// user so moderation can read all complaints against one account cheaply.
type ReportRepository struct {
	session *gocql.Session
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(session *gocql.Session) *ReportRepository {
	return &ReportRepository{session: session}
}

// Save appends a new report
func (r *ReportRepository) Save(report *domain.Report) error {
	if report.ReportID == uuid.Nil {
		report.ReportID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO reports (
			reported_id, created_at, report_id, reporter_id, session_id, reason
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	err := r.session.Query(query,
		report.ReportedID,
		report.CreatedAt,
		report.ReportID,
		report.ReporterID,
		report.SessionID,
		string(report.Reason),
	).Exec()

	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// GetByReportedUser retrieves reports filed against a user, newest first
func (r *ReportRepository) GetByReportedUser(reportedID uuid.UUID, limit int) ([]*domain.Report, error) {
	query := `
		SELECT reported_id, created_at, report_id, reporter_id, session_id, reason
		FROM reports
		WHERE reported_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	iter := r.session.Query(query, reportedID, limit).Iter()
	defer iter.Close()

	var reports []*domain.Report

	for {
		report := &domain.Report{}
		var reason string
		if !iter.Scan(
			&report.ReportedID,
			&report.CreatedAt,
			&report.ReportID,
			&report.ReporterID,
			&report.SessionID,
			&reason,
		) {
			break
		}
		report.Reason = domain.ReportReason(reason)
		reports = append(reports, report)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read reports: %w", err)
	}

	return reports, nil
}

// CountByReportedUser counts reports filed against a user
func (r *ReportRepository) CountByReportedUser(reportedID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM reports WHERE reported_id = ?`

	var count int64
	if err := r.session.Query(query, reportedID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}

	return count, nil
}
