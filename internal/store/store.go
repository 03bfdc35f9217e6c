package store

import (
	"time"

	"github.com/btouchard/taskmux/internal/track"
)

// Store is the archive persistence interface for taskmux.
// Defined at the consumer side per Go conventions.
type Store interface {
	SaveTask(t ArchivedTask) error
	GetTask(id string) (*ArchivedTask, error)
	ListTasks(f Filter) ([]ArchivedTask, error)
	DeleteTask(id string) error

	// Maintenance
	Cleanup() error
	Close() error
}

// ArchivedTask is a persisted terminal task record.
type ArchivedTask struct {
	ID              string
	Type            string
	Status          string
	StreamedContent string
	QueuePosition   int
	Result          string
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Filter specifies criteria for listing archived tasks.
type Filter struct {
	Status string
	Limit  int
	Since  time.Time
}

// FromSnapshot converts a tracker snapshot into its archive form.
func FromSnapshot(s track.Snapshot) ArchivedTask {
	a := ArchivedTask{
		ID:              s.TaskID,
		Type:            s.Type,
		Status:          string(s.Status),
		StreamedContent: s.StreamedContent,
		QueuePosition:   s.QueuePosition,
		Error:           s.Error,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.Result != nil {
		a.Result = s.Result.Content
	}
	return a
}

// Snapshot converts an archived record back into a tracker snapshot.
func (a ArchivedTask) Snapshot() track.Snapshot {
	s := track.Snapshot{
		TaskID:          a.ID,
		Type:            a.Type,
		Status:          track.Status(a.Status),
		StreamedContent: a.StreamedContent,
		QueuePosition:   a.QueuePosition,
		Error:           a.Error,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.Status == string(track.StatusCompleted) {
		s.Result = &track.Result{Content: a.Result}
	}
	return s
}
