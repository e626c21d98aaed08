package handler

import (
	"net/http"

	"ecinventory/internal/middleware"
	"ecinventory/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 商品作成の入力。stockは初期在庫。
type ProductCreateRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	Stock             int64  `json:"stock"`
	LowStockThreshold int64  `json:"lowStockThreshold"`
}

// /admin/products
type AdminProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase) *AdminProductHandler {
	return &AdminProductHandler{uc: uc}
}

// adminを登録
func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, jwtSecret string) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(jwtSecret))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/products", h.createProduct)
}

func (h *AdminProductHandler) createProduct(c echo.Context) error {
	var req ProductCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, usecase.KindInvalidInput, "invalid body")
	}

	p, err := h.uc.AdminCreateProduct(c.Request().Context(), usecase.AdminCreateProductInput{
		Name:              req.Name,
		Description:       req.Description,
		InitialStock:      req.Stock,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, p)
}
