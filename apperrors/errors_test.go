package apperrors_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"checkout-service/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesOnKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", apperrors.EmptyCart())

	assert.True(t, errors.Is(err, apperrors.ErrEmptyCart))
	assert.False(t, errors.Is(err, apperrors.ErrMissingAddress))
	assert.Equal(t, apperrors.KindEmptyCart, apperrors.KindOf(err))
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(errors.New("boom")))
}

func TestCommitStepFailure_CarriesStep(t *testing.T) {
	cause := errors.New("upstream 500")
	err := apperrors.CommitStepFailure("create_shipment", cause)

	assert.Equal(t, http.StatusBadGateway, err.Code)
	assert.Equal(t, "create_shipment", err.Step)
	assert.ErrorIs(t, err, cause)
}

func TestErrorMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.GET("/unauth", func(c *gin.Context) { _ = c.Error(apperrors.Unauthenticated()) })
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("secret detail")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unauth", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/auth", body["redirect"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")
}
