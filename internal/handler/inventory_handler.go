package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ecinventory/internal/domain/model"
	"ecinventory/internal/middleware"
	"ecinventory/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	dateLayout   = "2006-01-02"
)

// POST /inventory/add, /inventory/remove の入力
// quantityは文字列や小数を弾くため生のまま受ける
type StockRequest struct {
	ProductID      int64           `json:"productId"`
	Quantity       json.RawMessage `json:"quantity"`
	Reason         string          `json:"reason"`
	Notes          string          `json:"notes"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

type TotalsResponse struct {
	Type  model.StockTransactionType `json:"type"`
	Total int64                      `json:"total"`
}

type AlertsResponse struct {
	Items []model.StockAlert `json:"items"`
}

type InventoryHandler struct {
	ledger *usecase.LedgerUsecase
	query  *usecase.LedgerQueryUsecase
	alerts *usecase.StockAlertUsecase
}

// DI
func NewInventoryHandler(
	ledger *usecase.LedgerUsecase,
	query *usecase.LedgerQueryUsecase,
	alerts *usecase.StockAlertUsecase,
) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, query: query, alerts: alerts}
}

// /inventory はすべて管理者のみ
func (h *InventoryHandler) RegisterRoutes(e *echo.Echo, jwtSecret string) {
	inv := e.Group("/inventory")
	inv.Use(middleware.AuthJWT(jwtSecret))
	inv.Use(middleware.AdminRoleGuard())

	inv.POST("/add", h.add)
	inv.POST("/remove", h.remove)
	inv.GET("", h.list)
	inv.GET("/product/:productId", h.productHistory)
	inv.GET("/product/:productId/reconcile", h.reconcile)
	inv.GET("/totals", h.totals)
	inv.GET("/summary", h.summary)
	inv.GET("/alerts", h.currentAlerts)
}

func (h *InventoryHandler) add(c echo.Context) error {
	cmd, err := stockCommandFrom(c)
	if err != nil {
		return writeError(c, err)
	}

	stx, err := h.ledger.AddStock(c.Request().Context(), cmd)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stx)
}

func (h *InventoryHandler) remove(c echo.Context) error {
	cmd, err := stockCommandFrom(c)
	if err != nil {
		return writeError(c, err)
	}

	stx, err := h.ledger.RemoveStock(c.Request().Context(), cmd)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stx)
}

// bodyとJWTからコマンドを組み立てる
func stockCommandFrom(c echo.Context) (usecase.StockCommand, error) {
	var req StockRequest
	if err := c.Bind(&req); err != nil {
		return usecase.StockCommand{}, usecase.NewError(usecase.KindInvalidInput, "invalid body", nil)
	}

	qty, err := parseQuantity(req.Quantity)
	if err != nil {
		return usecase.StockCommand{}, err
	}

	cmd := usecase.StockCommand{
		ProductID:      req.ProductID,
		Quantity:       qty,
		Reason:         req.Reason,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}
	//ヘッダ優先
	if key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key")); key != "" {
		cmd.IdempotencyKey = key
	}
	if userID, ok := middleware.UserIDFromContext(c); ok {
		cmd.PerformedBy = &userID
	}
	return cmd, nil
}

// JSONの整数リテラルだけ通す（"5", true, 1.5 はすべてInvalidQuantity）
func parseQuantity(raw json.RawMessage) (int64, error) {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return 0, usecase.NewError(usecase.KindInvalidQuantity, "quantity is required", nil)
	}
	q, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, usecase.NewError(usecase.KindInvalidQuantity, "quantity must be a positive integer", nil)
	}
	return q, nil
}

func (h *InventoryHandler) list(c echo.Context) error {
	page, err := intQuery(c, "page", defaultPage)
	if err != nil {
		return writeError(c, err)
	}
	limit, err := intQuery(c, "limit", defaultLimit)
	if err != nil {
		return writeError(c, err)
	}
	productID, err := productIDQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	typ := typeQuery(c)
	from, to, err := dateRangeQuery(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.query.ListAll(c.Request().Context(), usecase.ListTransactionsInput{
		ProductID: productID,
		Type:      typ,
		From:      from,
		To:        to,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) productHistory(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return badRequest(c, usecase.KindInvalidInput, "invalid productId")
	}

	items, err := h.query.ListByProduct(c.Request().Context(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *InventoryHandler) reconcile(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return badRequest(c, usecase.KindInvalidInput, "invalid productId")
	}

	out, err := h.query.ReconcileProduct(c.Request().Context(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) totals(c echo.Context) error {
	typ := typeQuery(c)
	if typ == nil {
		return badRequest(c, usecase.KindInvalidInput, "type is required")
	}
	productID, err := productIDQuery(c)
	if err != nil {
		return writeError(c, err)
	}
	from, to, err := dateRangeQuery(c)
	if err != nil {
		return writeError(c, err)
	}

	total, err := h.query.AggregateTotals(c.Request().Context(), usecase.AggregateInput{
		Type:      *typ,
		ProductID: productID,
		From:      from,
		To:        to,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, TotalsResponse{Type: *typ, Total: total})
}

func (h *InventoryHandler) summary(c echo.Context) error {
	from, to, err := dateRangeQuery(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.query.Summary(c.Request().Context(), from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InventoryHandler) currentAlerts(c echo.Context) error {
	items, err := h.alerts.Evaluate(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, AlertsResponse{Items: items})
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, usecase.NewError(usecase.KindInvalidInput, "invalid "+name, nil)
	}
	return n, nil
}

func productIDQuery(c echo.Context) (*int64, error) {
	v := c.QueryParam("productId")
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, usecase.NewError(usecase.KindInvalidInput, "invalid productId", nil)
	}
	return &id, nil
}

// 値の検証はusecase側
func typeQuery(c echo.Context) *model.StockTransactionType {
	v := strings.TrimSpace(c.QueryParam("type"))
	if v == "" {
		return nil
	}
	typ := model.StockTransactionType(v)
	return &typ
}

func dateRangeQuery(c echo.Context) (*time.Time, *time.Time, error) {
	from, err := parseDate(c.QueryParam("startDate"), false)
	if err != nil {
		return nil, nil, usecase.NewError(usecase.KindInvalidInput, "invalid startDate", nil)
	}
	to, err := parseDate(c.QueryParam("endDate"), true)
	if err != nil {
		return nil, nil, usecase.NewError(usecase.KindInvalidInput, "invalid endDate", nil)
	}
	return from, to, nil
}

// 日付だけなら開始は0時、終了はその日の最後（UTC）
func parseDate(v string, endOfDay bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
