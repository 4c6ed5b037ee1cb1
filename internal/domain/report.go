package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReportReason enumerates accepted complaint categories
type ReportReason string

const (
	ReasonInappropriate ReportReason = "inappropriate"
	ReasonHarassment    ReportReason = "harassment"
	ReasonSpam          ReportReason = "spam"
	ReasonUnderage      ReportReason = "underage"
	ReasonOther         ReportReason = "other"
)

// ValidReportReason checks the reason against the accepted set
func ValidReportReason(r ReportReason) bool {
	switch r {
	case ReasonInappropriate, ReasonHarassment, ReasonSpam, ReasonUnderage, ReasonOther:
		return true
	}
	return false
}

// Report records one participant's complaint about the other party in a
// session. Append-only; immutable once created. Stored in Cassandra,
// partitioned by reported user for moderation reads.
type Report struct {
	ReportID   uuid.UUID    `json:"report_id"`
	ReporterID uuid.UUID    `json:"reporter_id"`
	ReportedID uuid.UUID    `json:"reported_id"`
	SessionID  uuid.UUID    `json:"session_id"`
	Reason     ReportReason `json:"reason"`
	CreatedAt  time.Time    `json:"created_at"`
}
