package chat

import (
	"context"
	"database/sql"
	"fmt"

	"pro-chat/internal/identity"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// pairMatch is the symmetric conversation predicate: a message belongs to
// the (a, b) conversation in either direction. Placeholders are numbered
// from base: a.id, a.class, b.id, b.class.
func pairMatch(base int) string {
	return fmt.Sprintf(`((sender_id = $%[1]d AND sender_class = $%[2]d AND receiver_id = $%[3]d AND receiver_class = $%[4]d)
		OR (sender_id = $%[3]d AND sender_class = $%[4]d AND receiver_id = $%[1]d AND receiver_class = $%[2]d))`,
		base, base+1, base+2, base+3)
}

const messageColumns = `id, sender_id, sender_class, receiver_id, receiver_class,
	content, kind, file_ref, file_name, file_size, is_read, created_at`

func scanMessage(row interface{ Scan(...interface{}) error }) (Message, error) {
	var m Message
	var fileRef, fileName sql.NullString
	var fileSize sql.NullInt64
	err := row.Scan(
		&m.ID, &m.Sender.ID, &m.Sender.Class, &m.Receiver.ID, &m.Receiver.Class,
		&m.Content, &m.Kind, &fileRef, &fileName, &fileSize, &m.Read, &m.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}
	m.FileRef = fileRef.String
	m.FileName = fileName.String
	m.FileSize = fileSize.Int64
	return m, nil
}

func (r *Repository) Append(ctx context.Context, m Message) (Message, error) {
	query := `
		INSERT INTO messages (sender_id, sender_class, receiver_id, receiver_class,
			content, kind, file_ref, file_name, file_size, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, 0), FALSE)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		m.Sender.ID, m.Sender.Class, m.Receiver.ID, m.Receiver.Class,
		m.Content, m.Kind, m.FileRef, m.FileName, m.FileSize,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	m.Read = false
	return m, nil
}

func (r *Repository) MessagesBetween(ctx context.Context, a, b identity.Participant, limit, offset int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// Newest page first, then reversed so each page reads oldest to newest.
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE %s
		ORDER BY id DESC
		LIMIT $5 OFFSET $6
	`, messageColumns, pairMatch(1))

	rows, err := r.db.QueryContext(ctx, query,
		a.ID, a.Class, b.ID, b.Class, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *Repository) MessagesInvolving(ctx context.Context, owner identity.Participant) ([]Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE (sender_id = $1 AND sender_class = $2)
		   OR (receiver_id = $1 AND receiver_class = $2)
		ORDER BY id
	`, messageColumns)

	rows, err := r.db.QueryContext(ctx, query, owner.ID, owner.Class)
	if err != nil {
		return nil, fmt.Errorf("query messages involving %s: %w", owner, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// MarkRead flips in one statement, so two racing calls cannot both count the
// same rows: whichever UPDATE commits first takes them all.
func (r *Repository) MarkRead(ctx context.Context, owner, partner identity.Participant) (int64, error) {
	query := `
		UPDATE messages SET is_read = TRUE
		WHERE receiver_id = $1 AND receiver_class = $2
		  AND sender_id = $3 AND sender_class = $4
		  AND is_read = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, owner.ID, owner.Class, partner.ID, partner.Class)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) DeleteConversation(ctx context.Context, a, b identity.Participant) error {
	query := fmt.Sprintf("DELETE FROM messages WHERE %s", pairMatch(1))
	if _, err := r.db.ExecContext(ctx, query, a.ID, a.Class, b.ID, b.Class); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (r *Repository) UnreadCount(ctx context.Context, owner identity.Participant) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM messages
		WHERE receiver_id = $1 AND receiver_class = $2 AND is_read = FALSE
	`
	if err := r.db.QueryRowContext(ctx, query, owner.ID, owner.Class).Scan(&count); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

func (r *Repository) HasConversation(ctx context.Context, a, b identity.Participant) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM messages WHERE %s)", pairMatch(1))
	if err := r.db.QueryRowContext(ctx, query, a.ID, a.Class, b.ID, b.Class).Scan(&exists); err != nil {
		return false, fmt.Errorf("conversation exists: %w", err)
	}
	return exists, nil
}
