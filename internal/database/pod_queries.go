package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Ravindra2377/KPR/internal/types"
	"github.com/lib/pq"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *PgRepository) CreatePod(ctx context.Context, pod types.Pod) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO pods (id, owner_id, name, description, tags, visibility, boost_active, boost_ends_at, created_at, updated_at) "+
				"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
			pod.Id,
			pod.OwnerId,
			pod.Name,
			pod.Description,
			textArray(pod.Tags),
			pod.Visibility,
			pod.Boost.Active,
			nullTime(pod.Boost),
			pod.CreatedAt,
			pod.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("insert pod: %w", err)
		}

		for i, r := range pod.Roles {
			if err := insertRole(ctx, tx, pod.Id, i, r); err != nil {
				return err
			}
		}

		for _, m := range pod.Members {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO pod_members (pod_id, user_id, role_id, role, joined_at) VALUES ($1, $2, $3, $4, $5)",
				pod.Id, m.UserId, m.RoleId, m.Role, m.JoinedAt,
			); err != nil {
				return fmt.Errorf("insert member: %w", err)
			}
		}

		for _, entry := range pod.Activity {
			if err := insertActivity(ctx, tx, pod.Id, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *PgRepository) GetPod(ctx context.Context, id string) (types.Pod, error) {
	return getPod(ctx, db.conn, id)
}

func (db *PgRepository) ListPodsByOwner(ctx context.Context, ownerId string) ([]types.Pod, error) {
	return db.listPods(ctx,
		"SELECT id FROM pods WHERE owner_id = $1 ORDER BY created_at DESC",
		ownerId,
	)
}

func (db *PgRepository) ListPodsByMember(ctx context.Context, userId string) ([]types.Pod, error) {
	return db.listPods(ctx,
		"SELECT p.id FROM pods p JOIN pod_members m ON m.pod_id = p.id "+
			"WHERE m.user_id = $1 ORDER BY p.created_at DESC",
		userId,
	)
}

func (db *PgRepository) listPods(ctx context.Context, query string, arg string) ([]types.Pod, error) {
	rows, err := db.conn.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query pods: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pods := make([]types.Pod, 0, len(ids))
	for _, id := range ids {
		pod, err := getPod(ctx, db.conn, id)
		if err != nil {
			return nil, err
		}
		pods = append(pods, pod)
	}
	return pods, nil
}

func (db *PgRepository) AddApplicant(ctx context.Context, podId string, a types.Applicant, entry types.ActivityEntry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockPod(ctx, tx, podId, entry); err != nil {
			return err
		}

		if isMember, err := memberExists(ctx, tx, podId, a.UserId); err != nil {
			return err
		} else if isMember {
			return ErrConflict
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO pod_applicants (pod_id, id, user_id, role_id, message, status, created_at) "+
				"VALUES ($1, $2, $3, $4, $5, $6, $7)",
			podId, a.Id, a.UserId, a.RoleId, a.Message, a.Status, a.CreatedAt,
		)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("insert applicant: %w", err)
		}
		return nil
	})
}

func (db *PgRepository) RemoveApplicant(ctx context.Context, podId, applicantId string, entry types.ActivityEntry) (types.Applicant, error) {
	var removed types.Applicant
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockPod(ctx, tx, podId, entry); err != nil {
			return err
		}

		var err error
		removed, err = deletePendingApplicant(ctx, tx, podId, applicantId)
		return err
	})
	return removed, err
}

func (db *PgRepository) AdmitApplicant(ctx context.Context, podId, applicantId string, m types.Member, entry types.ActivityEntry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockPod(ctx, tx, podId, entry); err != nil {
			return err
		}

		if _, err := deletePendingApplicant(ctx, tx, podId, applicantId); err != nil {
			return err
		}

		return admitMember(ctx, tx, podId, m)
	})
}

func (db *PgRepository) AddInvite(ctx context.Context, podId string, inv types.Invite, entry types.ActivityEntry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockPod(ctx, tx, podId, entry); err != nil {
			return err
		}

		if isMember, err := memberExists(ctx, tx, podId, inv.UserId); err != nil {
			return err
		} else if isMember {
			return ErrConflict
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO pod_invites (pod_id, id, user_id, role_id, invited_by, status, created_at) "+
				"VALUES ($1, $2, $3, $4, $5, $6, $7)",
			podId, inv.Id, inv.UserId, inv.RoleId, inv.InvitedBy, inv.Status, inv.CreatedAt,
		)
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("insert invite: %w", err)
		}
		return nil
	})
}

func (db *PgRepository) AcceptInvite(ctx context.Context, podId, inviteId string, m types.Member, entry types.ActivityEntry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockPod(ctx, tx, podId, entry); err != nil {
			return err
		}

		if err := resolveInvite(ctx, tx, podId, inviteId, types.StatusAccepted); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			"DELETE FROM pod_applicants WHERE pod_id = $1 AND user_id = $2 AND status = 'pending'",
			podId, m.UserId,
		)
		if err != nil {
			return fmt.Errorf("drop application: %w", err)
		}

		return admitMember(ctx, tx, podId, m)
	})
}

func (db *PgRepository) DeclineInvite(ctx context.Context, podId, inviteId string, entry types.ActivityEntry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockPod(ctx, tx, podId, entry); err != nil {
			return err
		}

		return resolveInvite(ctx, tx, podId, inviteId, types.StatusRejected)
	})
}

func (db *PgRepository) RemoveMember(ctx context.Context, podId, userId string, entry types.ActivityEntry) (types.Member, error) {
	var removed types.Member
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockPod(ctx, tx, podId, entry); err != nil {
			return err
		}

		err := tx.QueryRowContext(ctx,
			"DELETE FROM pod_members WHERE pod_id = $1 AND user_id = $2 "+
				"RETURNING user_id, role_id, role, joined_at",
			podId, userId,
		).Scan(&removed.UserId, &removed.RoleId, &removed.Role, &removed.JoinedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("delete member: %w", err)
		}

		if removed.RoleId == types.DefaultRoleId {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE pod_roles SET filled_count = GREATEST(filled_count - 1, 0), filled_by = array_remove(filled_by, $3) "+
				"WHERE pod_id = $1 AND id = $2",
			podId, removed.RoleId, userId,
		)
		if err != nil {
			return fmt.Errorf("release role slot: %w", err)
		}
		return nil
	})
	return removed, err
}

func (db *PgRepository) UpdateRoles(ctx context.Context, podId string, roles []types.Role, entry types.ActivityEntry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockPod(ctx, tx, podId, entry); err != nil {
			return err
		}

		for _, r := range roles {
			var filled int
			err := tx.QueryRowContext(ctx,
				"SELECT filled_count FROM pod_roles WHERE pod_id = $1 AND id = $2",
				podId, r.Id,
			).Scan(&filled)

			switch {
			case errors.Is(err, sql.ErrNoRows):
				var position int
				if err := tx.QueryRowContext(ctx,
					"SELECT COALESCE(MAX(position) + 1, 0) FROM pod_roles WHERE pod_id = $1",
					podId,
				).Scan(&position); err != nil {
					return fmt.Errorf("next role position: %w", err)
				}
				r.FilledCount = 0
				r.FilledBy = nil
				if err := insertRole(ctx, tx, podId, position, r); err != nil {
					return err
				}
			case err != nil:
				return fmt.Errorf("select role: %w", err)
			case r.SlotCount < filled:
				return ErrConflict
			default:
				if _, err := tx.ExecContext(ctx,
					"UPDATE pod_roles SET title = $3, description = $4, required_skills = $5, slot_count = $6 "+
						"WHERE pod_id = $1 AND id = $2",
					podId, r.Id, r.Title, r.Description, textArray(r.RequiredSkills), r.SlotCount,
				); err != nil {
					return fmt.Errorf("update role: %w", err)
				}
			}
		}
		return nil
	})
}

func (db *PgRepository) SetBoost(ctx context.Context, podId string, boost types.Boost, entry types.ActivityEntry) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockPod(ctx, tx, podId, entry); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			"UPDATE pods SET boost_active = $2, boost_ends_at = $3 WHERE id = $1",
			podId, boost.Active, nullTime(boost),
		)
		if err != nil {
			return fmt.Errorf("set boost: %w", err)
		}
		return nil
	})
}

// lockPod appends entry to the activity log and takes the pod row lock, which
// serializes every mutation of the same pod until the transaction ends.
func lockPod(ctx context.Context, tx *sql.Tx, podId string, entry types.ActivityEntry) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE pods SET updated_at = $2 WHERE id = $1",
		podId, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("lock pod: %w", err)
	}

	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return insertActivity(ctx, tx, podId, entry)
}

func insertActivity(ctx context.Context, tx *sql.Tx, podId string, entry types.ActivityEntry) error {
	var meta []byte
	if entry.Meta != nil {
		var err error
		if meta, err = json.Marshal(entry.Meta); err != nil {
			return err
		}
	}

	_, err := tx.ExecContext(ctx,
		"INSERT INTO pod_activity (pod_id, type, actor_id, meta, created_at) VALUES ($1, $2, $3, $4, $5)",
		podId, entry.Type, entry.ActorId, meta, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func insertRole(ctx context.Context, tx *sql.Tx, podId string, position int, r types.Role) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO pod_roles (pod_id, id, position, title, description, required_skills, slot_count, filled_count, filled_by) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		podId,
		r.Id,
		position,
		r.Title,
		r.Description,
		textArray(r.RequiredSkills),
		r.SlotCount,
		r.FilledCount,
		textArray(r.FilledBy),
	)
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func memberExists(ctx context.Context, tx *sql.Tx, podId, userId string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pod_members WHERE pod_id = $1 AND user_id = $2)",
		podId, userId,
	).Scan(&exists)
	return exists, err
}

func deletePendingApplicant(ctx context.Context, tx *sql.Tx, podId, applicantId string) (types.Applicant, error) {
	var a types.Applicant
	err := tx.QueryRowContext(ctx,
		"DELETE FROM pod_applicants WHERE pod_id = $1 AND id = $2 AND status = 'pending' "+
			"RETURNING id, user_id, role_id, message, status, created_at",
		podId, applicantId,
	).Scan(&a.Id, &a.UserId, &a.RoleId, &a.Message, &a.Status, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Applicant{}, ErrNotFound
	}
	if err != nil {
		return types.Applicant{}, fmt.Errorf("delete applicant: %w", err)
	}
	return a, nil
}

func resolveInvite(ctx context.Context, tx *sql.Tx, podId, inviteId string, status types.Status) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE pod_invites SET status = $3 WHERE pod_id = $1 AND id = $2 AND status = 'pending'",
		podId, inviteId, status,
	)
	if err != nil {
		return fmt.Errorf("resolve invite: %w", err)
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

// admitMember inserts m and claims a slot on its role. The claim only
// succeeds while filled_count < slot_count, so concurrent admissions can
// never overfill a role.
func admitMember(ctx context.Context, tx *sql.Tx, podId string, m types.Member) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO pod_members (pod_id, user_id, role_id, role, joined_at) VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (pod_id, user_id) DO NOTHING",
		podId, m.UserId, m.RoleId, m.Role, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	if n, err := affected(res); err != nil {
		return err
	} else if n == 0 {
		return ErrConflict
	}

	if m.RoleId == types.DefaultRoleId {
		return nil
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE pod_roles SET filled_count = filled_count + 1, filled_by = array_append(filled_by, $3) "+
			"WHERE pod_id = $1 AND id = $2 AND filled_count < slot_count",
		podId, m.RoleId, m.UserId,
	)
	if err != nil {
		return fmt.Errorf("claim role slot: %w", err)
	}
	if n, err := affected(res); err != nil {
		return err
	} else if n == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pod_roles WHERE pod_id = $1 AND id = $2)",
		podId, m.RoleId,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrRoleFull
}

func getPod(ctx context.Context, q querier, id string) (types.Pod, error) {
	var (
		pod    types.Pod
		endsAt sql.NullTime
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, owner_id, name, description, tags, visibility, boost_active, boost_ends_at, created_at, updated_at "+
			"FROM pods WHERE id = $1",
		id,
	).Scan(
		&pod.Id,
		&pod.OwnerId,
		&pod.Name,
		&pod.Description,
		pq.Array(&pod.Tags),
		&pod.Visibility,
		&pod.Boost.Active,
		&endsAt,
		&pod.CreatedAt,
		&pod.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Pod{}, ErrNotFound
	}
	if err != nil {
		return types.Pod{}, fmt.Errorf("select pod: %w", err)
	}
	if endsAt.Valid {
		pod.Boost.EndsAt = endsAt.Time.UTC()
	}
	pod.CreatedAt = pod.CreatedAt.UTC()
	pod.UpdatedAt = pod.UpdatedAt.UTC()

	if err := scanRows(ctx, q,
		"SELECT id, title, description, required_skills, slot_count, filled_count, filled_by "+
			"FROM pod_roles WHERE pod_id = $1 ORDER BY position",
		id,
		func(rows *sql.Rows) error {
			var r types.Role
			if err := rows.Scan(&r.Id, &r.Title, &r.Description, pq.Array(&r.RequiredSkills),
				&r.SlotCount, &r.FilledCount, pq.Array(&r.FilledBy)); err != nil {
				return err
			}
			pod.Roles = append(pod.Roles, r)
			return nil
		},
	); err != nil {
		return types.Pod{}, err
	}

	if err := scanRows(ctx, q,
		"SELECT user_id, role_id, role, joined_at FROM pod_members WHERE pod_id = $1 ORDER BY joined_at",
		id,
		func(rows *sql.Rows) error {
			var m types.Member
			if err := rows.Scan(&m.UserId, &m.RoleId, &m.Role, &m.JoinedAt); err != nil {
				return err
			}
			m.JoinedAt = m.JoinedAt.UTC()
			pod.Members = append(pod.Members, m)
			return nil
		},
	); err != nil {
		return types.Pod{}, err
	}

	if err := scanRows(ctx, q,
		"SELECT id, user_id, role_id, message, status, created_at FROM pod_applicants "+
			"WHERE pod_id = $1 AND status = 'pending' ORDER BY created_at",
		id,
		func(rows *sql.Rows) error {
			var a types.Applicant
			if err := rows.Scan(&a.Id, &a.UserId, &a.RoleId, &a.Message, &a.Status, &a.CreatedAt); err != nil {
				return err
			}
			a.CreatedAt = a.CreatedAt.UTC()
			pod.Applicants = append(pod.Applicants, a)
			return nil
		},
	); err != nil {
		return types.Pod{}, err
	}

	if err := scanRows(ctx, q,
		"SELECT id, user_id, role_id, invited_by, status, created_at FROM pod_invites "+
			"WHERE pod_id = $1 ORDER BY created_at",
		id,
		func(rows *sql.Rows) error {
			var i types.Invite
			if err := rows.Scan(&i.Id, &i.UserId, &i.RoleId, &i.InvitedBy, &i.Status, &i.CreatedAt); err != nil {
				return err
			}
			i.CreatedAt = i.CreatedAt.UTC()
			pod.Invites = append(pod.Invites, i)
			return nil
		},
	); err != nil {
		return types.Pod{}, err
	}

	if err := scanRows(ctx, q,
		"SELECT type, actor_id, meta, created_at FROM pod_activity WHERE pod_id = $1 ORDER BY id",
		id,
		func(rows *sql.Rows) error {
			var (
				e    types.ActivityEntry
				meta []byte
			)
			if err := rows.Scan(&e.Type, &e.ActorId, &meta, &e.CreatedAt); err != nil {
				return err
			}
			if len(meta) > 0 {
				if err := json.Unmarshal(meta, &e.Meta); err != nil {
					return err
				}
			}
			e.CreatedAt = e.CreatedAt.UTC()
			pod.Activity = append(pod.Activity, e)
			return nil
		},
	); err != nil {
		return types.Pod{}, err
	}

	return pod, nil
}

func scanRows(ctx context.Context, q querier, query, id string, scan func(rows *sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullTime(b types.Boost) sql.NullTime {
	if b.EndsAt.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: b.EndsAt, Valid: true}
}

// textArray keeps nil slices from being written as NULL into NOT NULL array columns.
func textArray(s []string) any {
	if s == nil {
		s = []string{}
	}
	return pq.Array(s)
}
