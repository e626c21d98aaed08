package server

import (
	"ecinventory/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Inventory    *handler.InventoryHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
}

func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string) {
	handler.RegisterHealth(e)
	h.Product.RegisterRoutes(e)
	h.AdminProduct.RegisterRoutes(e, jwtSecret)
	h.Inventory.RegisterRoutes(e, jwtSecret)
}
