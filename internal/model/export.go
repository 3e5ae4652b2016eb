package model

import "time"

// ReportExport is the index.json written alongside exported report files.
type ReportExport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Users       []UserSummary `json:"users"`
	Reports     []ReportInfo  `json:"reports"`
}

// UserSummary holds one user's quiz and viewing state for export.
type UserSummary struct {
	Username       string          `json:"username"`
	Nickname       string          `json:"nickname"`
	Role           UserRole        `json:"role"`
	Active         bool            `json:"active"`
	QuizLocked     bool            `json:"quiz_locked"`
	PendingAnswers int             `json:"pending_answers"`
	Progress       []VideoProgress `json:"progress"`
}

// ReportInfo describes one stored score report.
// Archive is set for reports of deleted accounts and names the archive
// directory holding them.
type ReportInfo struct {
	Username  string    `json:"username"`
	Archive   string    `json:"archive,omitempty"`
	Name      string    `json:"name"`
	Sequence  int       `json:"sequence"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
