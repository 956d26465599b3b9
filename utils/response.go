package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONResponse is the envelope every API endpoint answers with. Clients tell
// success from failure by the Success flag, not by the status code.
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Respond writes a JSON envelope with the given status code.
func Respond(ctx *gin.Context, status int, resp JSONResponse) {
	ctx.JSON(status, resp)
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, JSONResponse{Success: true, Data: data})
}

// Created answers a successful insert.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusCreated, JSONResponse{Success: true, Data: data})
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, message string) {
	Respond(ctx, status, JSONResponse{Success: false, Error: message})
}
