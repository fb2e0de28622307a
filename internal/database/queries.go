package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	userColumns    = "id, name, email, password_hash, avatar, online, last_seen, created_at, updated_at"
	messageColumns = "id, seq_id, sender_id, receiver_id, text, message_type, file_url, file_name, file_size, read, created_at"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Avatar,
		&u.Online,
		&u.LastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func scanUsers(rows *sql.Rows) ([]User, error) {
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func scanMessage(row rowScanner) (Message, error) {
	var m Message
	err := row.Scan(
		&m.Id,
		&m.SeqId,
		&m.SenderId,
		&m.ReceiverId,
		&m.Text,
		&m.MessageType,
		&m.FileUrl,
		&m.FileName,
		&m.FileSize,
		&m.Read,
		&m.CreatedAt,
	)

	return m, err
}

// escapeLike escapes LIKE wildcards so the term matches literally.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

func (db *PgRelayRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (name, email, password_hash, avatar, online, last_seen, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, TRUE, $5, $5, $5) RETURNING "+userColumns,
		params.Name,
		params.Email,
		params.PasswordHash,
		params.Avatar,
		now,
	)

	return scanUser(row)
}

func (db *PgRelayRepository) GetUserById(ctx context.Context, id int) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1 LIMIT 1",
		id,
	)

	return scanUser(row)
}

func (db *PgRelayRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1 LIMIT 1",
		email,
	)

	return scanUser(row)
}

func (db *PgRelayRepository) GetUsersByIds(ctx context.Context, ids []int) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ANY($1) ORDER BY name",
		pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}

	return scanUsers(rows)
}

func (db *PgRelayRepository) ListUsersExcept(ctx context.Context, userId int) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id <> $1 ORDER BY name",
		userId,
	)
	if err != nil {
		return nil, err
	}

	return scanUsers(rows)
}

func (db *PgRelayRepository) SearchUsersByName(ctx context.Context, userId int, term string) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id <> $1 AND name ILIKE '%' || $2 || '%' ORDER BY name",
		userId,
		escapeLike(term),
	)
	if err != nil {
		return nil, err
	}

	return scanUsers(rows)
}

func (db *PgRelayRepository) UpdatePresence(ctx context.Context, params UpdatePresenceParams) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE users SET online = $2, last_seen = $3, avatar = COALESCE(NULLIF($4, ''), avatar), updated_at = $5 "+
			"WHERE id = $1",
		params.UserId,
		params.Online,
		params.LastSeen,
		params.Avatar,
		time.Now().UTC(),
	)

	return err
}

// CreateMessage bumps the conversation's sequence counter and inserts the
// message in one transaction. The counter row lock orders concurrent writers.
func (db *PgRelayRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (msg Message, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	lo, hi := conversationKey(params.SenderId, params.ReceiverId)

	var seqId int
	err = tx.QueryRowContext(ctx,
		"INSERT INTO conversations (user_lo, user_hi, seq_id) VALUES ($1, $2, 1) "+
			"ON CONFLICT (user_lo, user_hi) DO UPDATE SET seq_id = conversations.seq_id + 1 RETURNING seq_id",
		lo,
		hi,
	).Scan(&seqId)
	if err != nil {
		return Message{}, fmt.Errorf("next seq id: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		"INSERT INTO messages (seq_id, user_lo, user_hi, sender_id, receiver_id, text, message_type, file_url, file_name, file_size, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING "+messageColumns,
		seqId,
		lo,
		hi,
		params.SenderId,
		params.ReceiverId,
		params.Text,
		params.MessageType,
		params.FileUrl,
		params.FileName,
		params.FileSize,
		params.CreatedAt,
	)

	msg, err = scanMessage(row)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func (db *PgRelayRepository) GetMessages(ctx context.Context, userId, peerId int) ([]Message, error) {
	lo, hi := conversationKey(userId, peerId)
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE user_lo = $1 AND user_hi = $2 ORDER BY seq_id ASC",
		lo,
		hi,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgRelayRepository) GetLastMessage(ctx context.Context, userId, peerId int) (Message, error) {
	lo, hi := conversationKey(userId, peerId)
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE user_lo = $1 AND user_hi = $2 ORDER BY seq_id DESC LIMIT 1",
		lo,
		hi,
	)

	return scanMessage(row)
}

func (db *PgRelayRepository) DeleteMessage(ctx context.Context, id int) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM messages WHERE id = $1", id)
	return err
}

func (db *PgRelayRepository) ListConversationPeers(ctx context.Context, userId int) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT DISTINCT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END "+
			"FROM messages WHERE sender_id = $1 OR receiver_id = $1",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	peers := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan peer: %w", err)
		}
		peers = append(peers, id)
	}

	return peers, rows.Err()
}

func (db *PgRelayRepository) CreateCall(ctx context.Context, params CreateCallParams) (Call, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO calls (caller_id, receiver_id, call_type, status, duration, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, caller_id, receiver_id, call_type, status, duration, created_at",
		params.CallerId,
		params.ReceiverId,
		params.CallType,
		params.Status,
		params.Duration,
		params.CreatedAt,
	)

	var c Call
	err := row.Scan(
		&c.Id,
		&c.CallerId,
		&c.ReceiverId,
		&c.CallType,
		&c.Status,
		&c.Duration,
		&c.CreatedAt,
	)

	return c, err
}

// UpdateRecentCallDuration sets the duration of the newest answered call
// between the pair created at or after Since.
func (db *PgRelayRepository) UpdateRecentCallDuration(ctx context.Context, params UpdateCallDurationParams) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE calls SET duration = $3 WHERE id = ("+
			"SELECT id FROM calls "+
			"WHERE ((caller_id = $1 AND receiver_id = $2) OR (caller_id = $2 AND receiver_id = $1)) "+
			"AND status = 'answered' AND created_at >= $4 "+
			"ORDER BY created_at DESC LIMIT 1)",
		params.UserA,
		params.UserB,
		params.Duration,
		params.Since,
	)

	return err
}

func (db *PgRelayRepository) GetCallHistory(ctx context.Context, userId, peerId, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			c.id,
			c.caller_id,
			caller.name,
			caller.avatar,
			c.receiver_id,
			receiver.name,
			receiver.avatar,
			c.call_type,
			c.status,
			c.duration,
			c.created_at
		FROM calls c
		JOIN users caller ON caller.id = c.caller_id
		JOIN users receiver ON receiver.id = c.receiver_id
		WHERE (c.caller_id = $1 AND c.receiver_id = $2)
		   OR (c.caller_id = $2 AND c.receiver_id = $1)
		ORDER BY c.created_at DESC
		LIMIT $3`,
		userId,
		peerId,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch call history: %w", err)
	}
	defer rows.Close()

	calls := make([]Call, 0, limit)
	for rows.Next() {
		var c Call
		err := rows.Scan(
			&c.Id,
			&c.CallerId,
			&c.CallerName,
			&c.CallerAvatar,
			&c.ReceiverId,
			&c.ReceiverName,
			&c.ReceiverAvatar,
			&c.CallType,
			&c.Status,
			&c.Duration,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		calls = append(calls, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return calls, nil
}
