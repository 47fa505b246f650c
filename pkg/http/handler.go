package http

import "github.com/labstack/echo/v4"

// Handler registers one route group on the shared echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// HandlerFunc lets a plain function act as a Handler.
type HandlerFunc func(e *echo.Echo)

func (f HandlerFunc) RegisterRoutes(e *echo.Echo) { f(e) }

// Mount registers handlers in order, skipping nil ones, and returns how many routes they added.
func Mount(e *echo.Echo, handlers ...Handler) int {
	before := len(e.Routes())
	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
	return len(e.Routes()) - before
}
