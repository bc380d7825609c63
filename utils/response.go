package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// WantsJSON reports whether the client negotiated JSON over HTML.
func WantsJSON(ctx *gin.Context) bool {
	return ctx.NegotiateFormat(binding.MIMEHTML, binding.MIMEJSON) == binding.MIMEJSON
}

// Render answers with the named template, or the standard JSON envelope when the client asks for JSON.
func Render(ctx *gin.Context, status int, name string, data gin.H) {
	if WantsJSON(ctx) {
		Respond(ctx, status, 0, "success", data)
		return
	}
	ctx.HTML(status, name, data)
}

// NotFound answers 404 as a page or JSON error.
func NotFound(ctx *gin.Context, code int, message string) {
	Fail(ctx, http.StatusNotFound, code, message)
}

// Fail answers an error as a page or JSON error and aborts the chain.
func Fail(ctx *gin.Context, status int, code int, message string) {
	if WantsJSON(ctx) {
		Error(ctx, status, code, message)
	} else {
		ctx.HTML(status, "error.html", gin.H{"status": status, "message": message})
	}
	ctx.Abort()
}
