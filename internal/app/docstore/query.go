package docstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/validate"
	"schoolmaps/internal/pkg/wire"
)

const (
	// DefaultQueryLimit applies when a query sets no limit.
	DefaultQueryLimit = 200
	MaxQueryLimit     = 500

	documentColumns = `collection, id, owner_id, data, created_at, updated_at`
)

// buildQuery renders q as SQL scoped to owner. Field names travel as parameters and
// filter values as JSON so nothing user supplied is spliced into the statement.
func buildQuery(owner string, q wire.Query) (string, []any, error) {
	if q.Limit < 0 || q.Limit > MaxQueryLimit {
		return "", nil, errs.NewError(errs.ErrQueryInvalid)
	}

	var sb strings.Builder
	args := []any{q.Collection, owner}

	sb.WriteString(`SELECT ` + documentColumns + ` FROM documents WHERE collection = $1 AND owner_id = $2`)

	for _, f := range q.Filters {
		if !validate.FieldName(f.Field) {
			return "", nil, errs.NewError(errs.ErrQueryInvalid)
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, errs.NewError(errs.ErrQueryInvalid)
		}
		args = append(args, f.Field, string(value))
		fmt.Fprintf(&sb, ` AND data -> $%d::text = $%d::jsonb`, len(args)-1, len(args))
	}

	if q.OrderBy != "" {
		if !validate.FieldName(q.OrderBy) {
			return "", nil, errs.NewError(errs.ErrQueryInvalid)
		}
		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, ` ORDER BY data -> $%d::text %s, id ASC`, len(args), dir)
	} else {
		sb.WriteString(` ORDER BY created_at ASC, id ASC`)
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultQueryLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))

	return sb.String(), args, nil
}
