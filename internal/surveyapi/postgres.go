package surveyapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/survey"

	databaseutil "github.com/NYCU-SDC/summer/pkg/database"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type InsertSubmissionParams struct {
	ID          uuid.UUID
	TokenID     pgtype.Text
	SurveyID    string
	UserID      string
	ExtraInfo   string
	Responses   []byte
	SubmittedAt pgtype.Timestamptz
}

type SubmissionRow struct {
	ID          uuid.UUID
	TokenID     pgtype.Text
	SurveyID    string
	UserID      string
	ExtraInfo   string
	Responses   []byte
	SubmittedAt pgtype.Timestamptz
}

type Querier interface {
	InsertSubmission(ctx context.Context, arg InsertSubmissionParams) error
	ListSubmissionsBySurvey(ctx context.Context, surveyID string) ([]SubmissionRow, error)
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const insertSubmission = `
INSERT INTO submissions (id, token_id, survey_id, user_id, extra_info, responses, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (q *Queries) InsertSubmission(ctx context.Context, arg InsertSubmissionParams) error {
	_, err := q.db.Exec(ctx, insertSubmission,
		arg.ID,
		arg.TokenID,
		arg.SurveyID,
		arg.UserID,
		arg.ExtraInfo,
		arg.Responses,
		arg.SubmittedAt,
	)
	return err
}

const listSubmissionsBySurvey = `
SELECT id, token_id, survey_id, user_id, extra_info, responses, submitted_at
FROM submissions
WHERE survey_id = $1
ORDER BY submitted_at, id
`

func (q *Queries) ListSubmissionsBySurvey(ctx context.Context, surveyID string) ([]SubmissionRow, error) {
	rows, err := q.db.Query(ctx, listSubmissionsBySurvey, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SubmissionRow
	for rows.Next() {
		var i SubmissionRow
		err := rows.Scan(
			&i.ID,
			&i.TokenID,
			&i.SurveyID,
			&i.UserID,
			&i.ExtraInfo,
			&i.Responses,
			&i.SubmittedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// PostgresStore keeps submissions in the submissions table; responses are
// stored as a JSON document.
type PostgresStore struct {
	logger  *zap.Logger
	tracer  trace.Tracer
	queries Querier
}

func NewPostgresStore(logger *zap.Logger, db DBTX) *PostgresStore {
	return NewPostgresStoreWithQuerier(logger, NewQueries(db))
}

func NewPostgresStoreWithQuerier(logger *zap.Logger, queries Querier) *PostgresStore {
	return &PostgresStore{
		logger:  logger,
		tracer:  otel.Tracer("surveyapi/postgres"),
		queries: queries,
	}
}

func (p *PostgresStore) Save(ctx context.Context, s Submission) error {
	traceCtx, span := p.tracer.Start(ctx, "Save")
	defer span.End()
	logger := logutil.WithContext(traceCtx, p.logger)

	responses, err := json.Marshal(s.Responses)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal responses: %w", err)
	}

	err = p.queries.InsertSubmission(traceCtx, InsertSubmissionParams{
		ID:          s.ID,
		TokenID:     pgtype.Text{String: s.TokenID, Valid: s.TokenID != ""},
		SurveyID:    s.SurveyID,
		UserID:      s.UserID,
		ExtraInfo:   s.ExtraInfo,
		Responses:   responses,
		SubmittedAt: pgtype.Timestamptz{Time: s.SubmittedAt, Valid: true},
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			logger.Warn("Response token reused", zap.String("survey_id", s.SurveyID), zap.String("token_id", s.TokenID))
			return internal.ErrDuplicateSubmission
		}
		err = databaseutil.WrapDBError(err, logger, "insert submission")
		span.RecordError(err)
		return err
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, surveyID string) ([]Submission, error) {
	traceCtx, span := p.tracer.Start(ctx, "List")
	defer span.End()
	logger := logutil.WithContext(traceCtx, p.logger)

	rows, err := p.queries.ListSubmissionsBySurvey(traceCtx, surveyID)
	if err != nil {
		err = databaseutil.WrapDBError(err, logger, "list submissions")
		span.RecordError(err)
		return nil, err
	}

	out := make([]Submission, 0, len(rows))
	for _, row := range rows {
		var entries []survey.Entry
		err := json.Unmarshal(row.Responses, &entries)
		if err != nil {
			logger.Error("Stored responses are not valid json", zap.String("submission_id", row.ID.String()), zap.Error(err))
			span.RecordError(err)
			return nil, fmt.Errorf("%w: submission %s: %v", internal.ErrDatabaseError, row.ID, err)
		}

		out = append(out, Submission{
			ID:          row.ID,
			TokenID:     row.TokenID.String,
			SurveyID:    row.SurveyID,
			UserID:      row.UserID,
			ExtraInfo:   row.ExtraInfo,
			Responses:   entries,
			SubmittedAt: row.SubmittedAt.Time,
		})
	}
	return out, nil
}
