package collection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/Mikedan37/BlazeDB"
)

// Query is the ad hoc, non-indexed escape hatch spec.md §1 allows ("query
// evaluation over non-indexed fields is a linear scan"): a CEL boolean
// expression filters the full document scan, with optional ascending
// ordering and a result limit applied afterward. This is deliberately not
// a query planner — indexed lookups should go through FetchByIndexedFields
// instead.
//
// Filter is evaluated with a single bound variable "doc", the document as
// a map[string]any (identifiers appear as their string form). An empty
// Filter matches every document.
type Query struct {
	Filter  string
	OrderBy string
	Limit   int
}

var queryEnv = mustQueryEnv()

func mustQueryEnv() *cel.Env {
	env, err := cel.NewEnv(cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		panic(fmt.Sprintf("blazedb: building CEL environment: %v", err))
	}
	return env
}

func compileFilter(expr string) (cel.Program, error) {
	ast, iss := queryEnv.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, blazedb.NewError(blazedb.Unknown, iss.Err(), expr)
	}
	prg, err := queryEnv.Program(ast)
	if err != nil {
		return nil, blazedb.NewError(blazedb.Unknown, err, expr)
	}
	return prg, nil
}

// celSafeDoc converts a Document into a form every field of which CEL's
// type adapter can natively represent; blazedb.ID values (which CEL has no
// concept of) become their canonical string form.
func celSafeDoc(doc blazedb.Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if id, ok := v.(blazedb.ID); ok {
			out[k] = id.String()
			continue
		}
		out[k] = v
	}
	return out
}

// RunQuery applies q to every live document via full scan, per spec.md
// §1's non-goal of rich query planning: this is a linear scan with an ad
// hoc CEL predicate, not an indexed path.
func (c *Collection) RunQuery(q Query) ([]blazedb.Document, error) {
	docs, err := c.FetchAll()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(q.Filter) != "" {
		prg, err := compileFilter(q.Filter)
		if err != nil {
			return nil, err
		}
		filtered := make([]blazedb.Document, 0, len(docs))
		for _, doc := range docs {
			out, _, err := prg.Eval(map[string]any{"doc": celSafeDoc(doc)})
			if err != nil {
				continue
			}
			if match, ok := out.Value().(bool); ok && match {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}

	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			return compareValues(
				blazedb.NormalizeValue(docs[i][q.OrderBy]),
				blazedb.NormalizeValue(docs[j][q.OrderBy]),
			) < 0
		})
	}

	if q.Limit > 0 && q.Limit < len(docs) {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

// compareValues orders two normalized values ascending. Values of
// differing kinds fall back to comparing their HashKey text, which is
// stable but not numerically meaningful across kinds.
func compareValues(a, b blazedb.Value) int {
	if a.Kind != b.Kind {
		return strings.Compare(a.HashKey(), b.HashKey())
	}
	switch a.Kind {
	case blazedb.KindText:
		return strings.Compare(a.Text, b.Text)
	case blazedb.KindInt:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case blazedb.KindFloat:
		switch {
		case a.Flt < b.Flt:
			return -1
		case a.Flt > b.Flt:
			return 1
		default:
			return 0
		}
	case blazedb.KindBool:
		if a.Bln == b.Bln {
			return 0
		}
		if !a.Bln {
			return -1
		}
		return 1
	case blazedb.KindTimestamp:
		switch {
		case a.Time.Before(b.Time):
			return -1
		case a.Time.After(b.Time):
			return 1
		default:
			return 0
		}
	default:
		return strings.Compare(a.HashKey(), b.HashKey())
	}
}
