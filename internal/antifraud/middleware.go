package antifraud

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondBlocked writes the 429 deny response when err is a guard block
// and reports whether it did so. Handlers call it right after Admit and
// bail out on true.
func RespondBlocked(c *gin.Context, err error) bool {
	var be *BlockError
	if !errors.As(err, &be) {
		return false
	}
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error": fmt.Sprintf("Operation limit exceeded (%s=%d/%d). Try again later.", be.Scope, be.Count, be.Limit),
		"scope": be.Scope,
		"count": be.Count,
		"limit": be.Limit,
	})
	return true
}
