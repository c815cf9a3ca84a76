package response

import (
	"github.com/gin-gonic/gin"
)

type body struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type errorBody struct {
	Success bool     `json:"success"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func Success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, body{Success: true, Message: message, Data: data})
}

func Error(c *gin.Context, status int, code string, message string) {
	c.JSON(status, errorBody{Success: false, Code: code, Message: message})
}

func ValidationError(c *gin.Context, status int, code string, message string, violations []string) {
	c.JSON(status, errorBody{Success: false, Code: code, Message: message, Errors: violations})
}
