package appkafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/forum/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	PostCreated    EventType = "post_created"
	CommentCreated EventType = "comment_created"
	VoteCreated    EventType = "vote_created"
	FollowCreated  EventType = "follow_created"
	FollowDeleted  EventType = "follow_deleted"
)

// VoteRef is the wire form of a vote: the target is flattened to a post or comment id.
type VoteRef struct {
	ID        int64           `json:"id"`
	Kind      models.VoteKind `json:"kind"`
	UserID    int64           `json:"user_id"`
	PostID    *int64          `json:"post_id,omitempty"`
	CommentID *int64          `json:"comment_id,omitempty"`
}

func NewVoteRef(v *models.Vote) *VoteRef {
	postID, commentID := v.TargetColumns()
	return &VoteRef{ID: v.ID, Kind: v.Kind, UserID: v.UserID, PostID: postID, CommentID: commentID}
}

// Event is one entry of the activity stream written after a successful write.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	ActorID    int64           `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Post       *models.Post    `json:"post,omitempty"`
	Comment    *models.Comment `json:"comment,omitempty"`
	Vote       *VoteRef        `json:"vote,omitempty"`
	Follow     *models.Follow  `json:"follow,omitempty"`
}

func NewEvent(t EventType, actorID int64) Event {
	return Event{ID: uuid.NewString(), Type: t, ActorID: actorID, OccurredAt: time.Now().UTC()}
}

// Publisher encodes events and writes them to Kafka keyed by event type.
type Publisher struct {
	writer KafkaWriter
}

func NewPublisher(w KafkaWriter) *Publisher {
	return &Publisher{writer: w}
}

func (p *Publisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.writer.WriteMessages(kafka.Message{Key: []byte(e.Type), Value: data}); err != nil {
		return fmt.Errorf("write %s event: %w", e.Type, err)
	}
	return nil
}

// DecodeEvent parses a message written by Publisher.
func DecodeEvent(msg kafka.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
