package judging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forge-club/forge/internal/shared"
)

// Repository defines persistence for judge sessions and the judge roster.
type Repository interface {
	InsertSession(ctx context.Context, session Session) error
	FindSession(ctx context.Context, sessionToken string, now time.Time) (*Session, error)
	DeleteSessionsByRoom(ctx context.Context, roomName string) (int64, error)
	CountSessionsByRoom(ctx context.Context, now time.Time) (map[string]int, error)
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	CreateJudge(ctx context.Context, judge Judge) (Judge, error)
	UpdateJudge(ctx context.Context, judge Judge) (Judge, error)
	DeleteJudge(ctx context.Context, id string) error
	ListJudges(ctx context.Context) ([]Judge, error)
	ListRoomNames(ctx context.Context) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// InsertSession appends a session row. Sessions are append-only: activating
// the same magic token twice yields two independent rows, so the primary key
// is the generated session token, never the magic token.
func (r *PGRepository) InsertSession(ctx context.Context, session Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO judge_sessions (session_token, room_name, expires_at) VALUES ($1, $2, $3)`,
		session.SessionToken, session.RoomName, session.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrConflict
		}
		return fmt.Errorf("judging: insert session: %w", err)
	}
	return nil
}

// FindSession returns the session only while it is unexpired. A row past its
// expiry is indistinguishable from a missing one.
func (r *PGRepository) FindSession(ctx context.Context, sessionToken string, now time.Time) (*Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT session_token, room_name, expires_at, created_at FROM judge_sessions WHERE session_token = $1 AND expires_at > $2`,
		sessionToken, now)
	var session Session
	if err := row.Scan(&session.SessionToken, &session.RoomName, &session.ExpiresAt, &session.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("judging: find session: %w", err)
	}
	return &session, nil
}

// DeleteSessionsByRoom removes every session for a room and reports how many
// rows went away.
func (r *PGRepository) DeleteSessionsByRoom(ctx context.Context, roomName string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM judge_sessions WHERE room_name = $1`, roomName)
	if err != nil {
		return 0, fmt.Errorf("judging: delete sessions by room: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountSessionsByRoom aggregates live sessions per room.
func (r *PGRepository) CountSessionsByRoom(ctx context.Context, now time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT room_name, COUNT(session_token) FROM judge_sessions WHERE expires_at > $1 GROUP BY room_name ORDER BY room_name`, now)
	if err != nil {
		return nil, fmt.Errorf("judging: count sessions: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var room string
		var count int
		if err := rows.Scan(&room, &count); err != nil {
			return nil, err
		}
		counts[room] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// PurgeExpiredSessions deletes rows past their expiry. Lookups already
// filter on expiry; this is storage hygiene only.
func (r *PGRepository) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM judge_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("judging: purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CreateJudge inserts a roster entry.
func (r *PGRepository) CreateJudge(ctx context.Context, judge Judge) (Judge, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO judges (id, name, room_name, challenge_id) VALUES ($1, $2, $3, $4) RETURNING id, name, room_name, challenge_id, created_at, updated_at`,
		judge.ID, judge.Name, judge.RoomName, judge.ChallengeID)
	return scanJudge(row)
}

// UpdateJudge overwrites name, room, and challenge.
func (r *PGRepository) UpdateJudge(ctx context.Context, judge Judge) (Judge, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE judges SET name = $2, room_name = $3, challenge_id = $4, updated_at = NOW() WHERE id = $1 RETURNING id, name, room_name, challenge_id, created_at, updated_at`,
		judge.ID, judge.Name, judge.RoomName, judge.ChallengeID)
	return scanJudge(row)
}

// DeleteJudge removes a roster entry.
func (r *PGRepository) DeleteJudge(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM judges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("judging: delete judge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListJudges returns the roster ordered by room then name.
func (r *PGRepository) ListJudges(ctx context.Context) ([]Judge, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, room_name, challenge_id, created_at, updated_at FROM judges ORDER BY room_name, name`)
	if err != nil {
		return nil, fmt.Errorf("judging: list judges: %w", err)
	}
	defer rows.Close()
	var judges []Judge
	for rows.Next() {
		judge, err := scanJudgeRows(rows)
		if err != nil {
			return nil, err
		}
		judges = append(judges, judge)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return judges, nil
}

// ListRoomNames returns distinct roster room names.
func (r *PGRepository) ListRoomNames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT room_name FROM judges ORDER BY room_name`)
	if err != nil {
		return nil, fmt.Errorf("judging: list rooms: %w", err)
	}
	defer rows.Close()
	var rooms []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

func scanJudge(row pgx.Row) (Judge, error) {
	var judge Judge
	if err := row.Scan(&judge.ID, &judge.Name, &judge.RoomName, &judge.ChallengeID, &judge.CreatedAt, &judge.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Judge{}, shared.ErrNotFound
		}
		return Judge{}, fmt.Errorf("judging: scan judge: %w", err)
	}
	return judge, nil
}

func scanJudgeRows(rows pgx.Rows) (Judge, error) {
	var judge Judge
	if err := rows.Scan(&judge.ID, &judge.Name, &judge.RoomName, &judge.ChallengeID, &judge.CreatedAt, &judge.UpdatedAt); err != nil {
		return Judge{}, err
	}
	return judge, nil
}

var _ Repository = (*PGRepository)(nil)
