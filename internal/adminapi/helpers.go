package adminapi

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

func readBody(c echo.Context) ([]byte, error) {
	return io.ReadAll(c.Request().Body)
}

func parseTimeParam(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("value must be positive")
	}
	return n, nil
}
