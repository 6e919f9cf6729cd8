package handler

import (
	"net/http"

	"opsflow/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/moogar0880/problems"
)

func badRequest(c *gin.Context, detail string) {
	problem := problems.NewStatusProblem(http.StatusBadRequest).
		WithInstance(c.Request.URL.Path).
		WithType("validation_error").
		WithDetail(detail)

	c.JSON(http.StatusBadRequest, problem)
}

// respondError provides typed error handling for service layer errors.
func respondError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		problem := problems.NewStatusProblem(http.StatusNotFound).
			WithInstance(c.Request.URL.Path).
			WithType("not_found").
			WithDetail(err.Error())

		c.JSON(http.StatusNotFound, problem)

	case domain.IsInvalidState(err):
		problem := problems.NewStatusProblem(http.StatusConflict).
			WithInstance(c.Request.URL.Path).
			WithType("invalid_state").
			WithDetail(err.Error())

		c.JSON(http.StatusConflict, problem)

	case domain.IsValidation(err):
		badRequest(c, err.Error())

	default:
		problem := problems.NewStatusProblem(http.StatusInternalServerError).
			WithInstance(c.Request.URL.Path).
			WithType("internal_error").
			WithError(err)

		c.JSON(http.StatusInternalServerError, problem)
	}
}
