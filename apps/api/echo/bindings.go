package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindUserFilter binds the query params of `GET /users`; created_from & created_to are RFC3339.
func bindUserFilter(ctx echo.Context) (*user.QueryFilter, error) {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, err
	}
	for param, dst := range map[string]*time.Time{
		"created_from": &filter.CreatedFrom,
		"created_to":   &filter.CreatedTo,
	} {
		val := ctx.QueryParam(param)
		if val == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: param, Error: "must be an RFC3339 date"})
		}
		*dst = t.UTC()
	}
	filter.Clean()
	return filter, nil
}
