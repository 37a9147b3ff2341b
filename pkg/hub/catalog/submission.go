package catalog

import (
	"context"

	"go.uber.org/zap"
)

// State is a step of the submission workflow.
type State string

const (
	StateIdle            State = "idle"
	StateValidating      State = "validating"
	StateUnauthenticated State = "unauthenticated"
	StateInvalid         State = "invalid"
	StateWriting         State = "writing"
	StateSuccess         State = "success"
	StateFailure         State = "failure"
)

// Submission is a resource proposed by a signed-in member.
type Submission struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Type        string   `json:"type"`
	Content     *string  `json:"content,omitempty"`
	Tags        []string `json:"tags"`
}

// Submitter runs member submissions through validation and the writer.
// Submissions are never featured; only admins feature resources.
type Submitter struct {
	writer *Writer
	logger *zap.Logger

	// OnTransition, when set, is called on every state change.
	OnTransition func(from, to State)
}

func NewSubmitter(writer *Writer, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{writer: writer, logger: logger}
}

// Submit creates the resource on behalf of authorID. An authorID of 0 means the
// caller is anonymous and yields ErrAuthRequired without touching the store.
// Failures are returned unchanged and never retried.
func (s *Submitter) Submit(ctx context.Context, sub Submission, authorID uint) (*FlattenedResource, error) {
	state := StateIdle
	move := func(to State) {
		if s.OnTransition != nil {
			s.OnTransition(state, to)
		}
		state = to
	}
	defer move(StateIdle)

	move(StateValidating)
	if authorID == 0 {
		move(StateUnauthenticated)
		return nil, ErrAuthRequired
	}

	fields := Fields{
		Title:       sub.Title,
		Description: sub.Description,
		URL:         sub.URL,
		Type:        sub.Type,
		Content:     sub.Content,
		AuthorID:    authorID,
	}
	if err := fields.Validate(); err != nil {
		move(StateInvalid)
		return nil, err
	}
	tags, err := NormalizeNames(sub.Tags)
	if err != nil {
		move(StateInvalid)
		return nil, err
	}

	move(StateWriting)
	created, err := s.writer.Create(ctx, fields, tags)
	if err != nil {
		move(StateFailure)
		return nil, err
	}

	s.logger.Debug("submission accepted", zap.String("resource_id", created.ID), zap.Uint("author_id", authorID))
	move(StateSuccess)
	return created, nil
}
