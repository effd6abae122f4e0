package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/prodrank/models"
)

func TestRespondCompareErrorUnwraps(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"direct", models.CanonicalizationError(models.FeaturePrice, "sold out", nil), http.StatusUnprocessableEntity, models.ErrCodeCanonicalization},
		{"wrapped", fmt.Errorf("compare: %w", models.CanonicalizationError(models.FeaturePrice, "sold out", nil)), http.StatusUnprocessableEntity, models.ErrCodeCanonicalization},
		{"wrapped input", fmt.Errorf("bind: %w", models.NewExtractError(models.ErrCodeInvalidInput, "bad body", nil)), http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, models.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondCompareError(c, tt.err)

			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
			var resp models.CompareResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.want {
				t.Errorf("response = %+v, want code %s", resp, tt.want)
			}
		})
	}
}
