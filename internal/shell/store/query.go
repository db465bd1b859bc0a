package store

import (
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/artpar/guardrails/internal/core/domain"
	"github.com/artpar/guardrails/internal/core/query"
)

const responseTemplatesTable = "response_templates"

// filterColumns are the columns a listing filter may reference.
var filterColumns = map[string]bool{
	domain.ColumnTenantID:    true,
	domain.ColumnType:        true,
	domain.ColumnResponse:    true,
	domain.ColumnDescription: true,
}

// sortColumns are the columns a listing may be ordered by.
var sortColumns = func() map[string]bool {
	m := make(map[string]bool, len(domain.SortColumns))
	for _, c := range domain.SortColumns {
		m[c] = true
	}
	return m
}()

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause turns a filter into a single condition. Columns listed in
// OrColumns are grouped with OR; the group is ANDed with the rest.
func whereClause(f query.Filter) (sq.Sqlizer, error) {
	var ands sq.And
	var ors sq.Or

	add := func(column string, cond sq.Sqlizer) {
		if f.IsOrColumn(column) {
			ors = append(ors, cond)
		} else {
			ands = append(ands, cond)
		}
	}

	for _, column := range sortedKeys(f.Keys) {
		if !filterColumns[column] {
			return nil, NewStoreError("ListResponseTemplates", "response_template", "", "unknown filter column "+column, ErrInvalidQuery)
		}
		add(column, sq.Eq{column: f.Keys[column]})
	}

	for _, column := range sortedKeys(f.Fields) {
		if !filterColumns[column] {
			return nil, NewStoreError("ListResponseTemplates", "response_template", "", "unknown filter column "+column, ErrInvalidQuery)
		}
		values := f.Values(f.Fields[column])
		if f.ExactMatch {
			add(column, sq.Eq{column: values})
			continue
		}
		var likes sq.Or
		for _, v := range values {
			likes = append(likes, sq.Expr(column+` LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(v)+"%"))
		}
		if len(likes) == 0 {
			likes = append(likes, sq.Expr("1 = 0"))
		}
		add(column, likes)
	}

	if len(ors) > 0 {
		ands = append(ands, ors)
	}
	return ands, nil
}

// orderBy returns ORDER BY terms for page, defaulting to newest first.
func orderBy(page query.PageRequest) ([]string, error) {
	if len(page.Sort) == 0 {
		return []string{"id DESC"}, nil
	}
	terms := make([]string, 0, len(page.Sort))
	for _, o := range page.Sort {
		if !sortColumns[o.Column] {
			return nil, NewStoreError("ListResponseTemplates", "response_template", "", "unknown sort column "+o.Column, ErrInvalidQuery)
		}
		if o.Desc {
			terms = append(terms, o.Column+" DESC")
		} else {
			terms = append(terms, o.Column+" ASC")
		}
	}
	return terms, nil
}

// listQueries builds the page query and the matching count query.
func listQueries(f query.Filter, page query.PageRequest) (sq.SelectBuilder, sq.SelectBuilder, error) {
	page = page.Normalize()

	where, err := whereClause(f)
	if err != nil {
		return sq.SelectBuilder{}, sq.SelectBuilder{}, err
	}
	orders, err := orderBy(page)
	if err != nil {
		return sq.SelectBuilder{}, sq.SelectBuilder{}, err
	}

	list := sq.Select("*").
		From(responseTemplatesTable).
		Where(where).
		OrderBy(orders...).
		Limit(uint64(page.Size)).
		Offset(uint64(page.Offset()))

	count := sq.Select("COUNT(*)").
		From(responseTemplatesTable).
		Where(where)

	return list, count, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
