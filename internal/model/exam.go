package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// ExamSettings is the grading configuration of an exam, fully resolved when
// the exam is loaded. Scoring never falls back to defaults on its own.
type ExamSettings struct {
	// Cutoff is the pass mark as a percentage of total marks.
	Cutoff                float64 `json:"cutoff"`
	EnableNegativeMarking bool    `json:"enable_negative_marking"`
	// NegativeMarks is deducted for a wrong answer unless the question overrides it.
	NegativeMarks float64 `json:"negative_marks"`
	AutoGrading   bool    `json:"auto_grading"`
}

// Exam represents an exam entity as seen by the session core.
type Exam struct {
	ID              uuid.UUID    `json:"id"`
	Title           string       `json:"title"`
	DurationSeconds int          `json:"duration_seconds"`
	TotalMarks      float64      `json:"total_marks"`
	Settings        ExamSettings `json:"settings"`
	Status          ExamStatus   `json:"status"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Duration returns the exam length as a time.Duration.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationSeconds) * time.Second
}

// ExamBundle is the Redis-cached exam with its full question set.
type ExamBundle struct {
	Exam      Exam       `json:"exam"`
	Questions []Question `json:"questions"`
}

// QuestionIDs returns the ids of the bundle's questions in order.
func (b *ExamBundle) QuestionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Questions))
	for _, q := range b.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// Question looks up a question of the bundle by id.
func (b *ExamBundle) Question(id uuid.UUID) (*Question, bool) {
	for i := range b.Questions {
		if b.Questions[i].ID == id {
			return &b.Questions[i], true
		}
	}
	return nil, false
}

// TotalMarks sums the marks of a question set.
func TotalMarks(questions []Question) float64 {
	var total float64
	for _, q := range questions {
		total += q.Marks
	}
	return total
}

// Paper returns the bundle's questions with the answer keys stripped.
func (b *ExamBundle) Paper() []PaperQuestion {
	paper := make([]PaperQuestion, 0, len(b.Questions))
	for _, q := range b.Questions {
		paper = append(paper, PaperQuestion{
			ID:          q.ID,
			Type:        q.Type,
			Marks:       q.Marks,
			Options:     q.Options,
			BlanksCount: q.BlanksCount,
			OrderNum:    q.OrderNum,
		})
	}
	return paper
}
