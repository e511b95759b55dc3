package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

// MessageStore implements ports.MessageStore.
type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{coll: db.Collection(collectionMessages)}
}

type messageDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	SenderID      string             `bson:"sender_id"`
	ReceiverID    string             `bson:"receiver_id"`
	ApplicationID string             `bson:"application_id"`
	Content       string             `bson:"content"`
	MessageType   string             `bson:"message_type"`
	CreatedAt     time.Time          `bson:"created_at"`
}

func (r *MessageStore) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	doc := messageDoc{
		SenderID:      msg.SenderID,
		ReceiverID:    msg.ReceiverID,
		ApplicationID: msg.ApplicationID,
		Content:       msg.Content,
		MessageType:   msg.MessageType,
		CreatedAt:     createdAt.UTC(),
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	out := *msg
	out.CreatedAt = doc.CreatedAt
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		out.ID = oid.Hex()
	}
	return &out, nil
}
