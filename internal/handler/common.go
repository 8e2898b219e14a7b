package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"Forecast_Hub/internal/pkg/errs"
)

// fail replies with the status mapped from err. Field errors are returned per field.
func fail(c *gin.Context, err error) {
	status := errs.StatusCode(err)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"msg": "internal server error"})
		return
	}
	var ve *errs.ValidationError
	if errors.As(err, &ve) && len(ve.Fields) > 0 {
		c.JSON(status, gin.H{"msg": ve.Message, "errors": ve.Fields})
		return
	}
	c.JSON(status, gin.H{"msg": err.Error()})
}

func badParams(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params", "error": err.Error()})
}

// pathID parses a positive numeric path parameter, replying 400 when it is not one.
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid " + name})
		return 0, false
	}
	return id, true
}

// queryUint parses an optional numeric query parameter; 0 when absent.
func queryUint(c *gin.Context, name string) (uint64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid " + name})
		return 0, false
	}
	return v, true
}

// queryTime parses an optional RFC 3339 or YYYY-MM-DD query parameter.
func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid " + name})
	return nil, false
}
