package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"petstore-service/internal/docstore"
	"petstore-service/internal/service"
	"petstore-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"order not found", store.ErrOrderNotFound, http.StatusNotFound},
		{"document not found", fmt.Errorf("load: %w", docstore.ErrNotFound), http.StatusNotFound},
		{"product not found", &store.ProductNotFoundError{ProductID: "p1"}, http.StatusNotFound},
		{"price mismatch", &store.PriceMismatchError{Name: "Dewormer", StorePrice: 500, ClientPrice: 450}, http.StatusUnprocessableEntity},
		{"insufficient stock", &store.InsufficientStockError{Name: "Dewormer", Requested: 3, Available: 1}, http.StatusUnprocessableEntity},
		{"invalid transition", &store.InvalidStateTransitionError{OrderID: "o1", From: "delivered", To: "packed"}, http.StatusUnprocessableEntity},
		{"purchase not verified", service.ErrPurchaseNotVerified, http.StatusUnprocessableEntity},
		{"invalid rating", service.ErrInvalidRating, http.StatusUnprocessableEntity},
		{"foreign address", fmt.Errorf("%w: a1", service.ErrAddressForbidden), http.StatusForbidden},
		{"exhausted conflict", fmt.Errorf("transaction conflict after 5 attempts: %w", docstore.ErrConflict), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			writeError(c, tc.err)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
