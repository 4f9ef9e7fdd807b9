package tenancy

import (
	"fmt"
	"strings"
)

// Statement is a rendered Postgres query fragment. Where and OrderBy are
// safe to interpolate; values travel in Args.
type Statement struct {
	Where   string
	Args    []any
	OrderBy string
	Limit   int
	Offset  int
}

// SQL renders the scoped query with $n placeholders starting at startArg.
// searchColumns are OR-ed together for the free-text search term.
func (s Scoped) SQL(searchColumns []string, startArg int) (Statement, error) {
	if startArg < 1 {
		startArg = 1
	}
	n := startArg
	var (
		clauses []string
		args    []any
	)
	next := func(v any) string {
		args = append(args, v)
		p := fmt.Sprintf("$%d", n)
		n++
		return p
	}

	for _, f := range s.Conditions() {
		if err := validIdent(f.Field); err != nil {
			return Statement{}, err
		}
		switch f.Op {
		case OpEq, "":
			clauses = append(clauses, f.Field+" = "+next(f.Value))
		case OpIn:
			values, ok := f.Value.([]string)
			if !ok {
				return Statement{}, fmt.Errorf("%w: %s in requires a string list", ErrInvalidQuery, f.Field)
			}
			clauses = append(clauses, f.Field+" = ANY("+next(values)+")")
		case OpILike:
			clauses = append(clauses, f.Field+" ILIKE "+next(likePattern(fmt.Sprint(f.Value))))
		default:
			return Statement{}, fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
	}

	if s.search != "" && len(searchColumns) > 0 {
		p := next(likePattern(s.search))
		ors := make([]string, 0, len(searchColumns))
		for _, c := range searchColumns {
			if err := validIdent(c); err != nil {
				return Statement{}, err
			}
			ors = append(ors, c+" ILIKE "+p)
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}

	if err := validIdent(s.sort.Field); err != nil {
		return Statement{}, err
	}
	dir := "ASC"
	if s.sort.Desc {
		dir = "DESC"
	}
	order := s.sort.Field + " " + dir
	if s.sort.Field != ColumnID {
		order += ", " + ColumnID + " " + dir
	}

	return Statement{
		Where:   strings.Join(clauses, " AND "),
		Args:    args,
		OrderBy: order,
		Limit:   s.page.Limit,
		Offset:  s.page.Offset(),
	}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(substr string) string {
	return "%" + likeEscaper.Replace(substr) + "%"
}
