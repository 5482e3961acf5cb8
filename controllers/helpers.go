package controllers

import (
	"regexp"
	"strconv"

	"github.com/campushub/loyalty-be/config"
	"github.com/gin-gonic/gin"
)

var (
	utoridPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8}$`)
	emailPattern  = regexp.MustCompile(`^[\w.-]+@mail\.utoronto\.ca$`)
)

func validUtorid(utorid string) bool {
	return utoridPattern.MatchString(utorid)
}

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// pagination parses 1-based page/limit query parameters. ok is false on any
// malformed or out-of-range value.
func pagination(c *gin.Context) (skip, take int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 0, 0, false
	}
	take, err = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || take <= 0 {
		return 0, 0, false
	}
	return (page - 1) * take, take, true
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		return 0, false
	}
	return uint(id), true
}

// notify pushes a best-effort message to the staff activity feed. The hub is
// nil in tests.
func notify(event string, payload interface{}) {
	if config.WSHub != nil {
		config.WSHub.Broadcast(event, payload)
	}
}
