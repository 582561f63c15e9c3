package order

import (
	"context"
	"fmt"

	"photo-intake-bot/internal/pkg"
	"photo-intake-bot/internal/pkg/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo interface {
	InsertEvent(ctx context.Context, event DBSessionEvent) (int64, error)
	CountEvents(ctx context.Context, orderNumber string, kind model.EventKind) (int, error)
	ListEvents(ctx context.Context, orderNumber string) ([]DBSessionEvent, error)
}

type DefaultRepo struct {
	db DBTX
	qb sq.StatementBuilderType
}

func NewDefaultRepo(db DBTX) Repo {
	return &DefaultRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (d *DefaultRepo) InsertEvent(ctx context.Context, event DBSessionEvent) (int64, error) {
	query, args, err := d.qb.
		Insert("session_events").
		Columns("order_number", "user_id", "kind", "photos", "required", "created_at").
		Values(event.OrderNumber, event.UserID, string(event.Kind), event.Photos, event.Required, event.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, &pkg.ErrDBProcedure{
			Cause: "failed to build query",
			Err:   err,
		}
	}

	var id int64
	if err := d.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, &pkg.ErrDBProcedure{
			Cause: "failed to insert session event",
			Info:  fmt.Sprintf("query: %s", query),
			Err:   err,
		}
	}
	return id, nil
}

func (d *DefaultRepo) CountEvents(ctx context.Context, orderNumber string, kind model.EventKind) (int, error) {
	query, args, err := d.qb.
		Select("count(*)").
		From("session_events").
		Where(sq.Eq{"order_number": orderNumber, "kind": string(kind)}).
		ToSql()
	if err != nil {
		return 0, &pkg.ErrDBProcedure{
			Cause: "failed to build query",
			Err:   err,
		}
	}

	var count int
	if err := d.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, &pkg.ErrDBProcedure{
			Cause: "failed to count session events",
			Info:  fmt.Sprintf("query: %s", query),
			Err:   err,
		}
	}
	return count, nil
}

func (d *DefaultRepo) ListEvents(ctx context.Context, orderNumber string) ([]DBSessionEvent, error) {
	query, args, err := d.qb.
		Select("id", "order_number", "user_id", "kind", "photos", "required", "created_at").
		From("session_events").
		Where(sq.Eq{"order_number": orderNumber}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, &pkg.ErrDBProcedure{
			Cause: "failed to build query",
			Err:   err,
		}
	}

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &pkg.ErrDBProcedure{
			Cause: "failed to select session events",
			Info:  fmt.Sprintf("query: %s", query),
			Err:   err,
		}
	}

	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[DBSessionEvent])
	if err != nil {
		return nil, &pkg.ErrDBProcedure{
			Cause: "failed to scan session events",
			Err:   err,
		}
	}
	return events, nil
}
