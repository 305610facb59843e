package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/JAVIERMONRA/proyecto-cursos-online/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=field,-other` where a leading "-" means descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type (
	MessageResponse struct {
		Message string `json:"message"`
	}

	// MensajeResponse is the acknowledgement shape of the course endpoints.
	MensajeResponse struct {
		Mensaje string `json:"mensaje"`
	}
)
