// Package state records what the worker did with each message.
package state

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Outcome is how a dispatch iteration ended.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeFailed         Outcome = "failed"
	OutcomeDecodeError    Outcome = "decode_error"
	OutcomeUnknownCommand Outcome = "unknown_command"
)

// DefaultRecentLimit bounds Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 50

// Entry is one row of the dispatch journal.
type Entry struct {
	ID            string    `json:"id"`
	MessageID     string    `json:"message_id"`
	PayloadDigest string    `json:"payload_digest"`
	Command       string    `json:"command,omitempty"`
	Argv          []string  `json:"argv,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	ExitStatus    *int      `json:"exit_status,omitempty"`
	Error         string    `json:"error,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Journal persists entries in the dispatch_log table.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record inserts e, assigning an ID and FinishedAt when they are unset.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.MessageID == "" {
		return fmt.Errorf("journal entry has no message id")
	}
	if e.Outcome == "" {
		return fmt.Errorf("journal entry has no outcome")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = j.now()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.FinishedAt
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = e.StartedAt
	}

	var argv any
	if e.Argv != nil {
		b, err := json.Marshal(e.Argv)
		if err != nil {
			return fmt.Errorf("encode argv: %w", err)
		}
		argv = string(b)
	}

	var exit any
	if e.ExitStatus != nil {
		exit = *e.ExitStatus
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO dispatch_log(id, message_id, payload_digest, command, argv, outcome, exit_status, error, received_at, started_at, finished_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.ID, e.MessageID, e.PayloadDigest, nullIfEmpty(e.Command), argv, string(e.Outcome), exit, nullIfEmpty(e.Error),
		formatTime(e.ReceivedAt), formatTime(e.StartedAt), formatTime(e.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert dispatch_log: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, message_id, payload_digest, command, argv, outcome, exit_status, error, received_at, started_at, finished_at
FROM dispatch_log
ORDER BY finished_at DESC, rowid DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatch_log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                                 Entry
			command, argv, errText            sql.NullString
			exit                              sql.NullInt64
			outcome                           string
			receivedAt, startedAt, finishedAt string
		)
		if err := rows.Scan(&e.ID, &e.MessageID, &e.PayloadDigest, &command, &argv, &outcome, &exit, &errText, &receivedAt, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch_log: %w", err)
		}
		e.Command = command.String
		e.Error = errText.String
		e.Outcome = Outcome(outcome)
		if argv.Valid {
			if err := json.Unmarshal([]byte(argv.String), &e.Argv); err != nil {
				return nil, fmt.Errorf("decode argv for %s: %w", e.ID, err)
			}
		}
		if exit.Valid {
			v := int(exit.Int64)
			e.ExitStatus = &v
		}
		if e.ReceivedAt, err = parseTime(receivedAt); err != nil {
			return nil, err
		}
		if e.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if e.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch_log: %w", err)
	}
	return out, nil
}

// Counts returns the number of journal rows per outcome.
func (j *Journal) Counts(ctx context.Context) (map[Outcome]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM dispatch_log GROUP BY outcome;`)
	if err != nil {
		return nil, fmt.Errorf("count dispatch_log: %w", err)
	}
	defer rows.Close()

	out := make(map[Outcome]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		out[Outcome(outcome)] = n
	}
	return out, rows.Err()
}

// PayloadDigest returns the BLAKE3 hex digest of the payload's JSON form.
// Payloads that cannot be encoded are digested from their %#v rendering.
func PayloadDigest(payload any) string {
	b, err := json.Marshal(payload)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", payload))
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse journal time %q: %w", s, err)
	}
	return t, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
