package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studyhub/internal/pkg/response"
)

func Health(c *gin.Context) {
	response.Success(c, http.StatusOK, "ok", nil)
}
