package database

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/lib/pq"
)

const messageColumns = "id, room_id, author_id, content, read_by, created_at"

func (db *PgRepository) CreateMessage(ctx context.Context, msg types.Message) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO messages ("+messageColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		msg.Id,
		msg.RoomId,
		msg.AuthorId,
		msg.Content,
		textArray(msg.ReadBy),
		msg.CreatedAt,
	)
	if hasCode(err, foreignKeyViolation) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (db *PgRepository) ListMessages(ctx context.Context, roomId string, before time.Time, limit int) ([]types.Message, error) {
	if before.IsZero() {
		before = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages "+
			"WHERE room_id = $1 AND created_at < $2 ORDER BY created_at DESC, id DESC LIMIT $3",
		roomId,
		before,
		clampTo(limit, MaxMessages),
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	list := make([]types.Message, 0)
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.Id, &msg.RoomId, &msg.AuthorId, &msg.Content, pq.Array(&msg.ReadBy), &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		list = append(list, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest first from the query
	slices.Reverse(list)
	return list, nil
}

func (db *PgRepository) MarkMessagesRead(ctx context.Context, roomId, readerId string) (int, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET read_by = array_append(read_by, $2) "+
			"WHERE room_id = $1 AND NOT ($2 = ANY (read_by))",
		roomId,
		readerId,
	)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}

	return affected(res)
}
