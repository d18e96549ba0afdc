package database

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Ravindra2377/KPR/internal/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoRepository) CreateMessage(ctx context.Context, msg types.Message) error {
	if _, err := m.GetRoom(ctx, msg.RoomId); err != nil {
		return err
	}

	_, err := m.messages.InsertOne(ctx, messageDoc{
		Id:        msg.Id,
		RoomId:    msg.RoomId,
		AuthorId:  msg.AuthorId,
		Content:   msg.Content,
		ReadBy:    nonNil(msg.ReadBy),
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (m *MongoRepository) ListMessages(ctx context.Context, roomId string, before time.Time, limit int) ([]types.Message, error) {
	filter := bson.M{"room_id": roomId}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(clampTo(limit, MaxMessages)))
	cur, err := m.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	list := make([]types.Message, 0, len(docs))
	for _, d := range docs {
		list = append(list, d.toMessage())
	}
	slices.Reverse(list)
	return list, nil
}

func (m *MongoRepository) MarkMessagesRead(ctx context.Context, roomId, readerId string) (int, error) {
	res, err := m.messages.UpdateMany(ctx,
		bson.M{"room_id": roomId, "read_by": bson.M{"$ne": readerId}},
		bson.M{"$addToSet": bson.M{"read_by": readerId}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return int(res.ModifiedCount), nil
}
