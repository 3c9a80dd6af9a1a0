package concert

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/encore/internal/platform/errors"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Filterable fields. All are strings; status is one of live, upcoming, ended.
var filterFields = []string{"id", "title", "artist", "status"}

// Matcher reports whether a record passes a parsed filter at time now.
type Matcher func(record Record, now time.Time) (bool, error)

func matchAll(Record, time.Time) (bool, error) { return true, nil }

// ParseFilter parses an AIP-160 expression such as
// `artist = "BTS" OR status = "live"` or `title:"tour"`.
// An empty expression matches everything.
func ParseFilter(filter string) (Matcher, error) {
	if strings.TrimSpace(filter) == "" {
		return matchAll, nil
	}
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, name := range filterFields {
		opts = append(opts, filtering.DeclareIdent(name, filtering.TypeString))
	}
	decls, err := filtering.NewDeclarations(opts...)
	if err != nil {
		return nil, fmt.Errorf("filter declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filter, decls)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid filter", err)
	}
	root := parsed.CheckedExpr.GetExpr()
	return func(record Record, now time.Time) (bool, error) {
		ok, err := evaluate(root, func(name string) (string, bool) {
			return fieldValue(record, now, name)
		})
		if err != nil {
			return false, apperrors.Wrap(apperrors.KindValidation, "invalid filter", err)
		}
		return ok, nil
	}, nil
}

func fieldValue(record Record, now time.Time, name string) (string, bool) {
	switch name {
	case "id":
		return record.ID, true
	case "title":
		return record.Title, true
	case "artist":
		return record.Artist, true
	case "status":
		return record.Status(now), true
	default:
		return "", false
	}
}

type resolver func(name string) (string, bool)

func evaluate(e *expr.Expr, resolve resolver) (bool, error) {
	if e == nil {
		return true, nil
	}
	call := e.GetCallExpr()
	if call == nil {
		return false, fmt.Errorf("unsupported expression %T", e.GetExprKind())
	}
	args := call.GetArgs()
	switch call.GetFunction() {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		for _, arg := range args {
			ok, err := evaluate(arg, resolve)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case filtering.FunctionOr:
		for _, arg := range args {
			ok, err := evaluate(arg, resolve)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case filtering.FunctionNot:
		if len(args) != 1 {
			return false, fmt.Errorf("NOT takes one argument")
		}
		ok, err := evaluate(args[0], resolve)
		return !ok, err
	case filtering.FunctionEquals, filtering.FunctionNotEquals, filtering.FunctionHas:
		left, right, err := operands(args, resolve)
		if err != nil {
			return false, err
		}
		switch call.GetFunction() {
		case filtering.FunctionEquals:
			return left == right, nil
		case filtering.FunctionNotEquals:
			return left != right, nil
		default:
			return strings.Contains(strings.ToLower(left), strings.ToLower(right)), nil
		}
	default:
		return false, fmt.Errorf("unsupported function %q", call.GetFunction())
	}
}

func operands(args []*expr.Expr, resolve resolver) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("comparison takes two arguments")
	}
	ident := args[0].GetIdentExpr()
	if ident == nil {
		return "", "", fmt.Errorf("left side must be a field")
	}
	left, ok := resolve(ident.GetName())
	if !ok {
		return "", "", fmt.Errorf("unknown field %q", ident.GetName())
	}
	constant := args[1].GetConstExpr()
	if constant == nil {
		return "", "", fmt.Errorf("right side must be a literal")
	}
	right, ok := constant.GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return "", "", fmt.Errorf("field %q compares against strings", ident.GetName())
	}
	return left, right.StringValue, nil
}
