package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/observer-server/internal/model"
)

// ResourceRepository serves tier-scoped rows of any catalogued table as
// JSON documents.
type ResourceRepository struct {
	db *Connection
}

var _ model.ResourceStore = (*ResourceRepository)(nil)

func NewResourceRepository(db *Connection) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) List(ctx context.Context, query model.ResourceQuery) ([]model.Record, int, error) {
	if query.Filter.Deny {
		return []model.Record{}, 0, nil
	}

	countSQL, countArgs := buildCountQuery(query)
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", query.Table, err)
	}

	listSQL, listArgs := buildListQuery(query)
	rows, err := r.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", query.Table, err)
	}
	defer rows.Close()

	records := make([]model.Record, 0, query.Page.Size)
	for rows.Next() {
		var (
			rec  model.Record
			data []byte
		)
		if err := rows.Scan(&rec.ID, &data); err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s: %w", query.Table, err)
		}
		rec.Data = json.RawMessage(data)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate %s: %w", query.Table, err)
	}

	return records, total, nil
}

func (r *ResourceRepository) Get(ctx context.Context, query model.ResourceQuery, id string) (model.Record, error) {
	if query.Filter.Deny {
		return model.Record{}, model.ErrNotFound
	}

	getSQL, args := buildGetQuery(query, id)
	var (
		rec  model.Record
		data []byte
	)
	err := r.db.QueryRow(ctx, getSQL, args...).Scan(&rec.ID, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Record{}, model.ErrNotFound
		}
		return model.Record{}, fmt.Errorf("failed to get %s: %w", query.Table, err)
	}
	rec.Data = json.RawMessage(data)

	return rec, nil
}

// where returns the filter clause with its arguments. Placeholders added by
// callers continue after the filter's own.
func where(query model.ResourceQuery) (string, []any) {
	if query.Filter.Clause == "" {
		return "TRUE", nil
	}
	args := make([]any, len(query.Filter.Args))
	copy(args, query.Filter.Args)
	return query.Filter.Clause, args
}

func selectColumns(query model.ResourceQuery) string {
	table := pgx.Identifier{query.Table}.Sanitize()
	key := pgx.Identifier{query.Table, query.KeyColumn}.Sanitize()
	return key + "::text, row_to_json(" + table + ")"
}

func buildCountQuery(query model.ResourceQuery) (string, []any) {
	clause, args := where(query)
	return "SELECT count(*) FROM " + pgx.Identifier{query.Table}.Sanitize() + " WHERE " + clause, args
}

func buildListQuery(query model.ResourceQuery) (string, []any) {
	clause, args := where(query)
	page := query.Page.Normalize()
	key := pgx.Identifier{query.Table, query.KeyColumn}.Sanitize()

	limit := "$" + strconv.Itoa(len(args)+1)
	offset := "$" + strconv.Itoa(len(args)+2)
	args = append(args, page.Size, page.Offset())

	return "SELECT " + selectColumns(query) +
		" FROM " + pgx.Identifier{query.Table}.Sanitize() +
		" WHERE " + clause +
		" ORDER BY " + key +
		" LIMIT " + limit + " OFFSET " + offset, args
}

func buildGetQuery(query model.ResourceQuery, id string) (string, []any) {
	clause, args := where(query)
	key := pgx.Identifier{query.Table, query.KeyColumn}.Sanitize()

	idParam := "$" + strconv.Itoa(len(args)+1)
	args = append(args, id)

	return "SELECT " + selectColumns(query) +
		" FROM " + pgx.Identifier{query.Table}.Sanitize() +
		" WHERE " + key + "::text = " + idParam +
		" AND (" + clause + ")", args
}
