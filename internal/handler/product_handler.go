package handler

import (
	"errors"
	"net/http"
	"strconv"

	"ecinventory/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func errorResponse(kind usecase.ErrorKind, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Kind: string(kind), Message: message}}
}

// 種類ごとのHTTPステータス
func statusFor(kind usecase.ErrorKind) int {
	switch kind {
	case usecase.KindProductNotFound:
		return http.StatusNotFound
	case usecase.KindInvalidQuantity, usecase.KindInvalidReason, usecase.KindInvalidNotes, usecase.KindInvalidInput:
		return http.StatusBadRequest
	case usecase.KindInsufficientStock, usecase.KindConcurrencyConflict:
		return http.StatusConflict
	case usecase.KindPersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := usecase.AsError(err); ok {
		//DBの中身は返さない
		return c.JSON(statusFor(e.Kind), errorResponse(e.Kind, e.Message))
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return c.JSON(he.Code, errorResponse(usecase.KindInvalidInput, http.StatusText(he.Code)))
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{Kind: "Internal", Message: "internal error"}})
}

func badRequest(c echo.Context, kind usecase.ErrorKind, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse(kind, message))
}

// /products の公開API
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// 公開商品のルートを登録
func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products/:id", h.detail)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return badRequest(c, usecase.KindInvalidInput, "invalid id")
	}

	p, err := h.uc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}
