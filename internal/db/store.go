package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidesk/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) CreateSession(ctx context.Context, sess *models.AnalysisSession) error {
	language, _ := marshalNullable(sess.Language)
	validity, _ := marshalNullable(sess.Validity)
	vectorResults, _ := marshalNullable(sess.VectorResults)
	processing, _ := json.Marshal(sess.Processing)
	response, _ := marshalNullable(sess.Response)
	sessErr, _ := marshalNullable(sess.Error)

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO analysis_sessions
			(id, ticket_id, organization_id, status, inquiry_text, language, validity,
			 vector_results, retrieval_note, processing_results, response_result, error,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, sess.ID, sess.TicketID, sess.OrganizationID, sess.Status, sess.InquiryText,
		language, validity, vectorResults, sess.RetrievalNote, processing, response, sessErr,
		sess.CreatedAt, sess.UpdatedAt)
	return err
}

// UpdateSession persists the full mutable state of a session in one statement.
// Checkpoints are just calls to this after each sub-decision; there is no
// optimistic-concurrency check, last write wins.
func (s *Store) UpdateSession(ctx context.Context, sess *models.AnalysisSession) error {
	language, _ := marshalNullable(sess.Language)
	validity, _ := marshalNullable(sess.Validity)
	vectorResults, _ := marshalNullable(sess.VectorResults)
	processing, _ := json.Marshal(sess.Processing)
	response, _ := marshalNullable(sess.Response)
	sessErr, _ := marshalNullable(sess.Error)
	sess.UpdatedAt = time.Now().UTC()

	_, err := s.Pool.Exec(ctx, `
		UPDATE analysis_sessions
		SET ticket_id = $1, status = $2, language = $3, validity = $4,
			vector_results = $5, retrieval_note = $6, processing_results = $7,
			response_result = $8, error = $9, updated_at = $10
		WHERE id = $11
	`, sess.TicketID, sess.Status, language, validity, vectorResults, sess.RetrievalNote,
		processing, response, sessErr, sess.UpdatedAt, sess.ID)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.AnalysisSession, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, ticket_id, organization_id, status, inquiry_text, language, validity,
			vector_results, retrieval_note, processing_results, response_result, error,
			created_at, updated_at
		FROM analysis_sessions WHERE id = $1
	`, id)
	return scanSession(row)
}

func (s *Store) GetSessionByTicket(ctx context.Context, ticketID string) (*models.AnalysisSession, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, ticket_id, organization_id, status, inquiry_text, language, validity,
			vector_results, retrieval_note, processing_results, response_result, error,
			created_at, updated_at
		FROM analysis_sessions WHERE ticket_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, ticketID)
	return scanSession(row)
}

func scanSession(row pgx.Row) (*models.AnalysisSession, error) {
	var (
		sess          models.AnalysisSession
		language      []byte
		validity      []byte
		vectorResults []byte
		processing    []byte
		response      []byte
		sessErr       []byte
	)
	if err := row.Scan(&sess.ID, &sess.TicketID, &sess.OrganizationID, &sess.Status,
		&sess.InquiryText, &language, &validity, &vectorResults, &sess.RetrievalNote,
		&processing, &response, &sessErr, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}

	if err := unmarshalNullable(language, &sess.Language); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(validity, &sess.Validity); err != nil {
		return nil, err
	}
	if len(vectorResults) > 0 {
		if err := json.Unmarshal(vectorResults, &sess.VectorResults); err != nil {
			return nil, err
		}
	}
	if len(processing) > 0 {
		if err := json.Unmarshal(processing, &sess.Processing); err != nil {
			return nil, err
		}
	}
	if err := unmarshalNullable(response, &sess.Response); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(sessErr, &sess.Error); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) CreateTicket(ctx context.Context, t *models.Ticket) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO tickets
			(id, organization_id, subject, customer_email, customer_name, status, priority,
			 assigned_to, ai_enabled, satisfaction_rating, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, t.ID, t.OrganizationID, t.Subject, t.CustomerEmail, t.CustomerName, t.Status,
		t.Priority, t.AssignedTo, t.AIEnabled, t.SatisfactionRating, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, organization_id, subject, customer_email, customer_name, status, priority,
			assigned_to, ai_enabled, satisfaction_rating, created_at, updated_at
		FROM tickets WHERE id = $1
	`, id)

	var t models.Ticket
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.Subject, &t.CustomerEmail, &t.CustomerName,
		&t.Status, &t.Priority, &t.AssignedTo, &t.AIEnabled, &t.SatisfactionRating,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	rows, err := s.Pool.Query(ctx, `SELECT tag FROM ticket_tags WHERE ticket_id = $1 ORDER BY tag`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		t.Tags = append(t.Tags, tag)
	}
	return &t, rows.Err()
}

func (s *Store) UpdateTicket(ctx context.Context, id string, upd models.TicketUpdate) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Priority != nil {
		add("priority", *upd.Priority)
	}
	if upd.AssignedTo != nil {
		add("assigned_to", *upd.AssignedTo)
	}
	if upd.AIEnabled != nil {
		add("ai_enabled", *upd.AIEnabled)
	}
	if upd.SatisfactionRating != nil {
		add("satisfaction_rating", *upd.SatisfactionRating)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := "UPDATE tickets SET " + strings.Join(sets, ", ") + fmt.Sprintf(" WHERE id = $%d", len(args))
	_, err := s.Pool.Exec(ctx, query, args...)
	return err
}

// ReplaceTicketTags clears existing tag links and inserts the new set in one
// transaction.
func (s *Store) ReplaceTicketTags(ctx context.Context, ticketID string, tags []string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_tags WHERE ticket_id = $1`, ticketID); err != nil {
			return err
		}
		for _, tag := range tags {
			if _, err := tx.Exec(ctx, `INSERT INTO ticket_tags (ticket_id, tag) VALUES ($1, $2)`, ticketID, tag); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) CreateTicketMessage(ctx context.Context, msg *models.TicketMessage) error {
	metadata, _ := marshalNullable(msg.Metadata)
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO ticket_messages (id, ticket_id, organization_id, content, sender_type, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, msg.ID, msg.TicketID, msg.OrganizationID, msg.Content, msg.SenderType, metadata, msg.CreatedAt)
	return err
}

func (s *Store) ListTicketMessages(ctx context.Context, ticketID string) ([]models.TicketMessage, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, ticket_id, organization_id, content, sender_type, metadata, created_at
		FROM ticket_messages WHERE ticket_id = $1 ORDER BY created_at ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TicketMessage
	for rows.Next() {
		var (
			msg      models.TicketMessage
			metadata []byte
		)
		if err := rows.Scan(&msg.ID, &msg.TicketID, &msg.OrganizationID, &msg.Content,
			&msg.SenderType, &metadata, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveEmployees(ctx context.Context, organizationID string) ([]models.Employee, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, role FROM employees
		WHERE organization_id = $1 AND active = TRUE
		ORDER BY name ASC
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Role); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

func unmarshalNullable[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}
