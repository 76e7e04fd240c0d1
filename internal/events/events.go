package events

import (
	"time"
)

// Event topics. One Kafka topic per family, the specific kind travels in
// the event Type field.
const (
	TopicSessions      = "exam.sessions"
	TopicMarking       = "exam.marking"
	TopicResults       = "exam.results"
	TopicAnnouncements = "exam.announcements"
)

// Event types
const (
	EventSessionStarted   = "session.started"
	EventSessionPaused    = "session.paused"
	EventSessionResumed   = "session.resumed"
	EventSessionFinalized = "session.finalized"
	EventExamEnded        = "exam.ended"
	EventExamAnnouncement = "exam.announcement"
	EventSubmissionMarked = "submission.marked"
	EventScorePosted      = "result.score_posted"
	EventResultPublished  = "result.published"
)

// Event is the envelope every published message shares.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ===== EVENT PAYLOADS =====

type SessionEvent struct {
	SubmissionID uint   `json:"submission_id"`
	ExamID       uint   `json:"exam_id"`
	StudentID    string `json:"student_id"`
	Status       string `json:"status"`
	// Seconds left at the moment of the event, 0 once finalized
	TimeRemaining int `json:"time_remaining"`
}

type ExamEndedEvent struct {
	ExamID         uint   `json:"exam_id"`
	ForcedSessions []uint `json:"forced_sessions"`
}

type AnnouncementEvent struct {
	ExamID  uint   `json:"exam_id"`
	Message string `json:"message"`
	SentBy  string `json:"sent_by"`
}

type SubmissionMarkedEvent struct {
	SubmissionID uint    `json:"submission_id"`
	ExamID       uint    `json:"exam_id"`
	StudentID    string  `json:"student_id"`
	TotalScore   float64 `json:"total_score"`
	MarkedBy     string  `json:"marked_by"`
}

type ScorePostedEvent struct {
	StudentID string  `json:"student_id"`
	SubjectID string  `json:"subject_id"`
	Term      int     `json:"term"`
	Session   string  `json:"session"`
	Total     float64 `json:"total"`
	Created   bool    `json:"created"`
}

type ResultPublishedEvent struct {
	ExamID     uint     `json:"exam_id"`
	StudentIDs []string `json:"student_ids"`
	Term       int      `json:"term"`
	Session    string   `json:"session"`
}

// TopicForEventType maps an event type to the topic it is published on.
func TopicForEventType(eventType string) string {
	switch eventType {
	case EventSessionStarted, EventSessionPaused, EventSessionResumed, EventSessionFinalized, EventExamEnded:
		return TopicSessions
	case EventSubmissionMarked:
		return TopicMarking
	case EventScorePosted, EventResultPublished:
		return TopicResults
	case EventExamAnnouncement:
		return TopicAnnouncements
	default:
		return TopicSessions
	}
}
