package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"petstore-service/internal/cart"
	"petstore-service/internal/docstore"
	"petstore-service/internal/models"
	"petstore-service/internal/service"
	"petstore-service/internal/store"
	"petstore-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders  *service.OrderService
	reviews *service.ReviewService
	catalog *service.CatalogService
	account *service.AccountService
	cart    *cart.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	reviews *service.ReviewService,
	catalog *service.CatalogService,
	account *service.AccountService,
	cartClient *cart.Client,
) *Handler {
	return &Handler{
		orders:  orders,
		reviews: reviews,
		catalog: catalog,
		account: account,
		cart:    cartClient,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/products/:id/reviews", h.listReviews)

		authed := v1.Group("", requireUser())
		{
			authed.POST("/me", h.ensureUser)
			authed.PUT("/me/profile", h.updateProfile)
			authed.GET("/me/addresses", h.listAddresses)
			authed.POST("/me/addresses", h.addAddress)
			authed.PUT("/me/addresses/:id", h.updateAddress)
			authed.DELETE("/me/addresses/:id", h.deleteAddress)

			authed.GET("/cart", h.getCart)
			authed.GET("/cart/count", h.cartCount)
			authed.POST("/cart/items", h.addToCart)
			authed.DELETE("/cart/items/:productId", h.removeFromCart)
			authed.DELETE("/cart", h.clearCart)

			authed.POST("/orders", h.placeOrder)
			authed.GET("/orders", h.listOrders)
			authed.GET("/orders/:id", h.getOrder)
			authed.POST("/orders/:id/cancel", h.cancelOrder)

			authed.POST("/reviews", h.submitReview)
		}

		admin := v1.Group("/admin", requireUser(), requireAdmin())
		{
			admin.POST("/products", h.createProduct)
			admin.PUT("/products/:id", h.updateProduct)
			admin.DELETE("/products/:id", h.deleteProduct)
			admin.POST("/products/:id/stock-toggle", h.toggleStock)
			admin.POST("/uploads", h.uploadImage)

			admin.GET("/orders", h.listAllOrders)
			admin.PUT("/orders/:id/status", h.updateOrderStatus)
			admin.PUT("/orders/:id/tracking", h.updateTracking)
			admin.GET("/orders/feed", h.orderFeed)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "time": time.Now().Unix()})
}

// --- Catalog ---

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	product, err := h.catalog.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) toggleStock(c *gin.Context) {
	var req struct {
		InStock bool `json:"in_stock"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.catalog.ToggleStock(c.Request.Context(), c.Param("id"), req.InStock); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) uploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		badRequest(c, err)
		return
	}
	src, err := file.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer src.Close()

	url, err := h.catalog.UploadImage(c.Request.Context(), file.Filename, src)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// --- Cart ---

func (h *Handler) getCart(c *gin.Context) {
	user := mustUser(c)
	items, err := h.cart.Items(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) cartCount(c *gin.Context) {
	user := mustUser(c)
	count, err := h.cart.Count(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) addToCart(c *gin.Context) {
	user := mustUser(c)

	var req struct {
		ProductID string `json:"product_id" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), req.ProductID)
	if err != nil {
		writeError(c, err)
		return
	}

	quantity, err := h.cart.Add(c.Request.Context(), user.ID, models.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		ImageURL:  product.ImageURL,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": product.ID, "quantity": quantity})
}

func (h *Handler) removeFromCart(c *gin.Context) {
	user := mustUser(c)
	if err := h.cart.Remove(c.Request.Context(), user.ID, c.Param("productId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearCart(c *gin.Context) {
	user := mustUser(c)
	if err := h.cart.Clear(c.Request.Context(), user.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Orders ---

func (h *Handler) placeOrder(c *gin.Context) {
	user := mustUser(c)

	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	req.UserID = user.ID
	req.UserEmail = user.Email
	req.UserName = user.Name

	resp, err := h.orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	// The cart was consumed by the order; clearing it is best-effort.
	if err := h.cart.Clear(c.Request.Context(), user.ID); err != nil {
		util.GetLogger().Sugar().Warnf("Failed to clear cart after order: %v", err)
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listOrders(c *gin.Context) {
	user := mustUser(c)
	orders, err := h.orders.ListUserOrders(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	user := mustUser(c)
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if order.UserID != user.ID && !user.Admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your order"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	user := mustUser(c)
	orderID := c.Param("id")

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	if order.UserID != user.ID && !user.Admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your order"})
		return
	}

	if err := h.orders.CancelOrder(c.Request.Context(), orderID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": models.OrderStatusCancelled})
}

// --- Admin orders ---

func (h *Handler) listAllOrders(c *gin.Context) {
	orders, err := h.orders.ListAllOrders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateTracking(c *gin.Context) {
	var req struct {
		TrackingNumber string `json:"tracking_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.orders.SetTracking(c.Request.Context(), c.Param("id"), req.TrackingNumber); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// orderFeed streams committed order changes as server-sent events.
func (h *Handler) orderFeed(c *gin.Context) {
	ch := make(chan models.Order, 16)
	sub, err := h.orders.WatchOrders(c.Request.Context(), func(order models.Order) {
		select {
		case ch <- order:
		default:
			// Slow consumer; drop rather than block commits.
		}
	})
	if err != nil {
		writeError(c, err)
		return
	}
	defer sub.Cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case order := <-ch:
			c.SSEvent("order", order)
			return true
		}
	})
}

// --- Reviews ---

func (h *Handler) listReviews(c *gin.Context) {
	reviews, err := h.reviews.ListReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

func (h *Handler) submitReview(c *gin.Context) {
	user := mustUser(c)

	var req service.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.UserID = user.ID
	req.UserName = user.Name

	review, err := h.reviews.SubmitReview(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// --- Account ---

func (h *Handler) ensureUser(c *gin.Context) {
	user := mustUser(c)
	profile, err := h.account.EnsureUser(c.Request.Context(), user.ID, user.Email, user.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) updateProfile(c *gin.Context) {
	user := mustUser(c)

	var req struct {
		DisplayName string `json:"display_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	profile, err := h.account.UpdateProfile(c.Request.Context(), user.ID, req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) listAddresses(c *gin.Context) {
	user := mustUser(c)
	addresses, err := h.account.ListAddresses(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

func (h *Handler) addAddress(c *gin.Context) {
	user := mustUser(c)

	var req service.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	address, err := h.account.AddAddress(c.Request.Context(), user.ID, &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (h *Handler) updateAddress(c *gin.Context) {
	user := mustUser(c)

	var req service.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	address, err := h.account.UpdateAddress(c.Request.Context(), user.ID, c.Param("id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *Handler) deleteAddress(c *gin.Context) {
	user := mustUser(c)
	if err := h.account.DeleteAddress(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Helpers ---

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// writeError maps the error taxonomy onto HTTP statuses. Validation
// failures carry their user-displayable reason; conflicts that exhausted
// their retries surface as a generic retry hint.
func writeError(c *gin.Context, err error) {
	var productNotFound *store.ProductNotFoundError
	switch {
	case errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, docstore.ErrNotFound),
		errors.As(err, &productNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case store.IsValidationError(err),
		errors.Is(err, service.ErrPurchaseNotVerified),
		errors.Is(err, service.ErrInvalidRating):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAddressForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, docstore.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "The store is busy, please retry"})
	case errors.Is(err, docstore.ErrMalformedRecord):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Malformed record"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
