package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/prodrank/harness"
	"github.com/use-agent/prodrank/models"
)

// Compare returns a handler for POST /api/v1/compare. It applies the
// evaluation canonicalization of a feature to an expected/actual pair.
func Compare() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CompareRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondCompareError(c, models.NewExtractError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		f, err := models.ParseFeature(req.Feature)
		if err != nil {
			respondCompareError(c, err)
			return
		}
		match, err := harness.Compare(req.Expected, req.Actual, f)
		if err != nil {
			respondCompareError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.CompareResponse{Success: true, Match: match})
	}
}

func respondCompareError(c *gin.Context, err error) {
	var e *models.ExtractError
	if !errors.As(err, &e) {
		e = models.NewExtractError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(e), models.CompareResponse{Success: false, Error: e.ToDetail()})
}
