package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/infracore/eventcore/pkg/projection"
)

// SQL executes DatabaseWrite/DatabaseUpdate/DatabaseDelete effects against
// a *sql.DB: an executor any projection.Project can target by naming a
// table and a primary key column, instead of each projection writing its
// own SQL inline.
type SQL struct {
	DB          *sql.DB
	KeyColumn   string // defaults to "aggregate_id" if empty
	IgnoreOther SideEffectExecutor
}

func (s SQL) keyColumn() string {
	if s.KeyColumn == "" {
		return "aggregate_id"
	}
	return s.KeyColumn
}

func (s SQL) Execute(ctx context.Context, effects []projection.Effect) error {
	for _, eff := range effects {
		switch e := eff.(type) {
		case projection.DatabaseWrite:
			if err := s.insert(ctx, e); err != nil {
				return err
			}
		case projection.DatabaseUpdate:
			if err := s.update(ctx, e); err != nil {
				return err
			}
		case projection.DatabaseDelete:
			if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", e.Table, s.keyColumn()), e.Key); err != nil {
				return fmt.Errorf("executor: delete from %s: %w", e.Table, err)
			}
		default:
			if s.IgnoreOther != nil {
				if err := s.IgnoreOther.Execute(ctx, []projection.Effect{eff}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s SQL) insert(ctx context.Context, e projection.DatabaseWrite) error {
	cols := sortedKeys(e.Row)
	placeholders := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = e.Row[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", e.Table, strings.Join(cols, ", "), placeholders)
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executor: insert into %s: %w", e.Table, err)
	}
	return nil
}

func (s SQL) update(ctx context.Context, e projection.DatabaseUpdate) error {
	cols := sortedKeys(e.Patches)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, e.Patches[c])
	}
	args = append(args, e.Key)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", e.Table, strings.Join(sets, ", "), s.keyColumn())
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executor: update %s: %w", e.Table, err)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
