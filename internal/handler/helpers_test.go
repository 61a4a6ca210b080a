package handler_test

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clausewise/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setAuthContext(c *gin.Context, userID uuid.UUID) {
	c.Set(middleware.ContextKeyUserID, userID)
	c.Set(middleware.ContextKeyEmail, "user@test.com")
}
