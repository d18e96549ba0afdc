package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/lib/pq"
)

const (
	notificationColumns = "id, user_id, type, message, meta, read, created_at"
	roomColumns         = "id, name, is_direct, members, pair_key, created_at"
	collabColumns       = "id, from_user_id, to_user_id, message, status, reason, room_id, created_at, updated_at"
)

func (db *PgRepository) CreateNotification(ctx context.Context, n types.Notification) error {
	meta, err := types.EncodeMeta(n.Meta)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		"INSERT INTO notifications ("+notificationColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		n.Id,
		n.UserId,
		n.Type,
		n.Message,
		meta,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (db *PgRepository) ListNotifications(ctx context.Context, userId string, limit int) ([]types.Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications "+
			"WHERE user_id = $1 ORDER BY read ASC, created_at DESC LIMIT $2",
		userId,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var list []types.Notification
	for rows.Next() {
		var (
			n    types.Notification
			meta []byte
		)
		if err := rows.Scan(&n.Id, &n.UserId, &n.Type, &n.Message, &meta, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}

		if n.Meta, err = types.DecodeMeta(n.Type, meta); err != nil {
			return nil, err
		}
		n.CreatedAt = n.CreatedAt.UTC()
		list = append(list, n)
	}

	return list, rows.Err()
}

func (db *PgRepository) CountUnreadNotifications(ctx context.Context, userId string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE",
		userId,
	).Scan(&count)

	return count, err
}

func (db *PgRepository) MarkNotificationRead(ctx context.Context, id, userId string) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2",
		id,
		userId,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PgRepository) MarkAllNotificationsRead(ctx context.Context, userId string) (int, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE",
		userId,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}

	return affected(res)
}

func (db *PgRepository) GetOrCreateDirectRoom(ctx context.Context, room types.Room) (types.Room, bool, error) {
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO rooms ("+roomColumns+") VALUES ($1, $2, $3, $4, $5, $6) "+
			"ON CONFLICT (pair_key) DO NOTHING",
		room.Id,
		room.Name,
		room.IsDirect,
		textArray(room.Members),
		room.PairKey,
		room.CreatedAt,
	)
	if err != nil {
		return types.Room{}, false, fmt.Errorf("insert room: %w", err)
	}

	n, err := affected(res)
	if err != nil {
		return types.Room{}, false, err
	}
	if n == 1 {
		return room, true, nil
	}

	// lost the race, or the room already existed
	existing, err := scanRoom(db.conn.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE pair_key = $1",
		room.PairKey,
	))
	return existing, false, err
}

func (db *PgRepository) GetRoom(ctx context.Context, id string) (types.Room, error) {
	return scanRoom(db.conn.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id = $1",
		id,
	))
}

func scanRoom(row *sql.Row) (types.Room, error) {
	var (
		room    types.Room
		pairKey sql.NullString
	)
	err := row.Scan(
		&room.Id,
		&room.Name,
		&room.IsDirect,
		pq.Array(&room.Members),
		&pairKey,
		&room.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Room{}, ErrNotFound
	}
	if err != nil {
		return types.Room{}, err
	}

	room.PairKey = pairKey.String
	room.CreatedAt = room.CreatedAt.UTC()
	return room, nil
}

func (db *PgRepository) CreateCollabRequest(ctx context.Context, req types.CollabRequest) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO collab_requests ("+collabColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		req.Id,
		req.FromUserId,
		req.ToUserId,
		req.Message,
		req.Status,
		req.Reason,
		req.RoomId,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert collab request: %w", err)
	}
	return nil
}

func (db *PgRepository) GetCollabRequest(ctx context.Context, id string) (types.CollabRequest, error) {
	return scanCollabRequest(db.conn.QueryRowContext(ctx,
		"SELECT "+collabColumns+" FROM collab_requests WHERE id = $1",
		id,
	))
}

func (db *PgRepository) FindCollabRequest(ctx context.Context, fromUserId, toUserId string, status types.CollabStatus) (types.CollabRequest, error) {
	return scanCollabRequest(db.conn.QueryRowContext(ctx,
		"SELECT "+collabColumns+" FROM collab_requests "+
			"WHERE from_user_id = $1 AND to_user_id = $2 AND status = $3 "+
			"ORDER BY created_at DESC LIMIT 1",
		fromUserId,
		toUserId,
		status,
	))
}

func (db *PgRepository) ListCollabRequests(ctx context.Context, userId string, incoming bool) ([]types.CollabRequest, error) {
	column := "from_user_id"
	if incoming {
		column = "to_user_id"
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+collabColumns+" FROM collab_requests WHERE "+column+" = $1 ORDER BY created_at DESC",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("query collab requests: %w", err)
	}
	defer rows.Close()

	var list []types.CollabRequest
	for rows.Next() {
		req, err := scanCollabRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, req)
	}

	return list, rows.Err()
}

func (db *PgRepository) TransitionCollabRequest(ctx context.Context, id string, status types.CollabStatus, reason, roomId string) (types.CollabRequest, error) {
	req, err := scanCollabRequest(db.conn.QueryRowContext(ctx,
		"UPDATE collab_requests SET status = $2, reason = $3, room_id = $4, updated_at = $5 "+
			"WHERE id = $1 AND status = 'pending' RETURNING "+collabColumns,
		id,
		status,
		reason,
		roomId,
		types.Now(),
	))
	if !errors.Is(err, ErrNotFound) {
		return req, err
	}

	if _, err := db.GetCollabRequest(ctx, id); err != nil {
		return types.CollabRequest{}, err
	}
	return types.CollabRequest{}, ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollabRequest(row rowScanner) (types.CollabRequest, error) {
	var req types.CollabRequest
	err := row.Scan(
		&req.Id,
		&req.FromUserId,
		&req.ToUserId,
		&req.Message,
		&req.Status,
		&req.Reason,
		&req.RoomId,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CollabRequest{}, ErrNotFound
	}
	if err != nil {
		return types.CollabRequest{}, err
	}

	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	return req, nil
}
