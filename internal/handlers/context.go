package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/postacad/backend/internal/middleware"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 9
	maxPageSize     = 50
)

// getUserIDFromContext returns the id set by JWTAuthMiddleware, or 0 when the request is anonymous
func getUserIDFromContext(c echo.Context) uint {
	id, ok := c.Get(middleware.ContextUserID).(uint)
	if !ok {
		return 0
	}
	return id
}

func requireUser(c echo.Context) (uint, error) {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return currentUserID, nil
}

func parseUserIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}
	return uint(id), nil
}

// queryLimit reads ?limit=, falling back to def and capping at maxPageSize
func queryLimit(c echo.Context, def int) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// repoError maps repository sentinels to HTTP errors. what names the missing entity.
func repoError(err error, what string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	case errors.Is(err, repositories.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid "+what+" ID")
	case errors.Is(err, repositories.ErrInvalidCursor):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid cursor")
	case errors.Is(err, repositories.ErrAlreadyFollowing):
		return echo.NewHTTPError(http.StatusConflict, "Already following this user")
	case errors.Is(err, repositories.ErrAlreadyPurchased):
		return echo.NewHTTPError(http.StatusConflict, "A transaction for this post already exists")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{
		"success": true,
		"data":    data,
	})
}
