package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"

	"telephony-bridge/internal/models"
)

// ErrDuplicateCall is returned when the call_uuid is already persisted.
var ErrDuplicateCall = errors.New("duplicate call record")

// execer is the minimal interface needed from a pgx pool for CallStore.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// CallStore writes terminal call records to the cc.cdr table. Best effort:
// the tracker logs failures and moves on; the in-memory state machine is
// never blocked on the database.
type CallStore struct {
	pool execer
	log  *slog.Logger
}

func NewCallStore(pool execer, log *slog.Logger) *CallStore {
	return &CallStore{pool: pool, log: log}
}

func (s *CallStore) InsertCall(ctx context.Context, rec models.CallRecord) error {
	cmdTag, err := s.pool.Exec(ctx, `
        INSERT INTO cc.cdr (
            call_uuid, origin, direction,
            caller_number, called_number, extension,
            status, start_time, answer_time, end_time, duration
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
        )
        ON CONFLICT (call_uuid) DO NOTHING
    `,
		rec.UniqueID,
		string(rec.Origin),
		string(rec.Direction),
		nullableString(rec.CallerNumber),
		nullableString(rec.CalledNumber),
		nullableString(rec.Extension),
		string(rec.Status),
		rec.StartTime,
		rec.AnswerTime,
		rec.EndTime,
		rec.Duration,
	)
	if err != nil {
		return fmt.Errorf("insert call record: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		s.log.Info("call record already exists", "call_uuid", rec.UniqueID)
		return ErrDuplicateCall
	}

	s.log.Info("inserted call record", "call_uuid", rec.UniqueID, "status", rec.Status)
	return nil
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
