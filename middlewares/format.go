package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RespondJSON writes a JSON response to the client.
func RespondJSON(c *gin.Context, data interface{}, status int) {
	c.JSON(status, data)
}

// HttpError logs an error with the request logger and writes an HTTP error response to the client.
func HttpError(c *gin.Context, message string, status int, err error) {
	event := zerolog.Ctx(c.Request.Context()).Warn()
	if status >= 500 {
		event = zerolog.Ctx(c.Request.Context()).Error()
	}
	event.Err(err).Int("status", status).Msg(message)
	c.JSON(status, gin.H{"error": message})
}
