package middleware

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
)

// Recover converts handler panics into a 500 response instead of
// killing the connection. ErrAbortHandler passes through so the
// net/http abort convention keeps working.
func Recover() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				log.Printf("PANIC: %v\n%s", panicErr(r), debug.Stack())
				msg := http.StatusText(http.StatusInternalServerError)
				_ = c.JSON(http.StatusInternalServerError,
					map[string]interface{}{"status": http.StatusInternalServerError, "message": msg})
			}()
			return next(c)
		}
	}
}

func panicErr(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
