package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scandishop/storefront_api/internal/cart"
	"github.com/scandishop/storefront_api/internal/models"
	"github.com/scandishop/storefront_api/internal/service"
	"github.com/scandishop/storefront_api/internal/utils"
)

// TabIDHeader identifies the browser tab behind a cart request.
const TabIDHeader = "X-Tab-Id"

// CartBackend stores carts and carries their change notifications.
type CartBackend interface {
	cart.Storage
	cart.Bus
}

// OrderSubmitter places orders.
type OrderSubmitter interface {
	PlaceOrder(ctx context.Context, items []service.OrderItemInput) (*models.Order, error)
}

// CartHandler exposes cart operations over HTTP. Each request acts as the tab
// named by the X-Tab-Id header.
type CartHandler struct {
	backend CartBackend
	orders  OrderSubmitter
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(backend CartBackend, orders OrderSubmitter) *CartHandler {
	return &CartHandler{backend: backend, orders: orders}
}

// SelectionRequest picks one option of an attribute set.
type SelectionRequest struct {
	AttributeSetID int `json:"attributeSetId"`
	ItemID         int `json:"itemId"`
}

// AddItemRequest is the body of POST /v1/carts/:cartId/items.
type AddItemRequest struct {
	Product    cart.Product       `json:"product"`
	Selections []SelectionRequest `json:"selections"`
	Quantity   int                `json:"quantity"`
}

// UpdateQuantityRequest is the body of PATCH /v1/carts/:cartId/items/:index.
// Exactly one field must be set.
type UpdateQuantityRequest struct {
	Delta    *int `json:"delta"`
	Quantity *int `json:"quantity"`
}

// UpdateAttributesRequest is the body of PUT /v1/carts/:cartId/items/:index/attributes.
type UpdateAttributesRequest struct {
	Selections []SelectionRequest `json:"selections"`
}

// tabID returns the caller's tab id, minting one when absent, and echoes it.
func tabID(c *gin.Context) string {
	id := c.GetHeader(TabIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	c.Header(TabIDHeader, id)
	c.Set(utils.TabIDKey, id)
	return id
}

func (h *CartHandler) store(c *gin.Context) *cart.Store {
	return cart.NewStore(c.Param("cartId"), tabID(c), h.backend, h.backend)
}

// GetCart handles GET /v1/carts/:cartId
func (h *CartHandler) GetCart(c *gin.Context) {
	snap, err := h.store(c).Snapshot(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	utils.Success(c, 200, "Cart retrieved", snap)
}

// AddItem handles POST /v1/carts/:cartId/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_CART_INPUT", "Invalid request body")
		return
	}

	selections, ok := resolveSelections(req.Product, req.Selections)
	if !ok {
		utils.Error(c, 400, "INVALID_CART_INPUT", "Selection does not match the product's attributes")
		return
	}

	snap, err := h.store(c).AddOrMerge(c.Request.Context(), req.Product, selections, req.Quantity)
	if err != nil {
		h.handleError(c, err)
		return
	}
	utils.Success(c, 200, "Item added", snap)
}

// UpdateQuantity handles PATCH /v1/carts/:cartId/items/:index
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Delta == nil) == (req.Quantity == nil) {
		utils.Error(c, 400, "INVALID_CART_INPUT", "Exactly one of delta or quantity is required")
		return
	}

	store := h.store(c)
	var (
		snap cart.Snapshot
		err  error
	)
	if req.Delta != nil {
		snap, err = store.AdjustQuantity(c.Request.Context(), index, *req.Delta)
	} else {
		snap, err = store.SetQuantity(c.Request.Context(), index, *req.Quantity)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}
	utils.Success(c, 200, "Quantity updated", snap)
}

// UpdateAttributes handles PUT /v1/carts/:cartId/items/:index/attributes
func (h *CartHandler) UpdateAttributes(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req UpdateAttributesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_CART_INPUT", "Invalid request body")
		return
	}

	// Resolved against the line as stored when the change applies.
	snap, err := h.store(c).Reselect(c.Request.Context(), index, func(line cart.LineItem) ([]cart.SelectedAttribute, error) {
		selections, ok := resolveSelections(cart.Product{ID: line.ProductID, AttributeSets: line.AttributeSets}, req.Selections)
		if !ok {
			return nil, fmt.Errorf("%w: selection does not match the product's attributes", utils.ErrInvalidCartInput)
		}
		return selections, nil
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	utils.Success(c, 200, "Attributes updated", snap)
}

// RemoveItem handles DELETE /v1/carts/:cartId/items/:index
func (h *CartHandler) RemoveItem(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	snap, err := h.store(c).RemoveLine(c.Request.Context(), index)
	if err != nil {
		h.handleError(c, err)
		return
	}
	utils.Success(c, 200, "Item removed", snap)
}

// Checkout handles POST /v1/carts/:cartId/checkout
func (h *CartHandler) Checkout(c *gin.Context) {
	order, err := h.store(c).Checkout(c.Request.Context(), cart.OrderPlacerFunc(h.placeOrder))
	if order != nil {
		message := "Order placed"
		if err != nil {
			message = "Order placed, cart could not be cleared"
		}
		utils.Success(c, 201, message, order)
		return
	}

	switch {
	case errors.Is(err, utils.ErrInvalidCartInput), errors.Is(err, utils.ErrInvalidOrder):
		h.handleError(c, err)
	default:
		utils.Error(c, 502, "CHECKOUT_FAILED", "Order could not be placed, cart kept")
	}
}

func (h *CartHandler) placeOrder(ctx context.Context, lines []cart.OrderLine) (*models.Order, error) {
	items := make([]service.OrderItemInput, 0, len(lines))
	for _, l := range lines {
		price := l.Price
		quantity := l.Quantity
		attributes := l.Attributes
		items = append(items, service.OrderItemInput{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       &price,
			Quantity:    &quantity,
			Attributes:  &attributes,
		})
	}
	return h.orders.PlaceOrder(ctx, items)
}

func (h *CartHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrCartLineNotFound):
		utils.Error(c, 404, "CART_LINE_NOT_FOUND", "Cart line not found")
	case errors.Is(err, utils.ErrInvalidCartInput):
		utils.Error(c, 400, "INVALID_CART_INPUT", err.Error())
	case errors.Is(err, utils.ErrInvalidOrder):
		utils.Error(c, 400, "INVALID_ORDER", err.Error())
	case errors.Is(err, utils.ErrCartConflict):
		utils.Error(c, 409, "CART_CONFLICT", "Cart is being changed elsewhere, try again")
	default:
		utils.Error(c, 500, "INTERNAL_ERROR", "Internal server error")
	}
}

func lineIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		utils.Error(c, 400, "INVALID_CART_INPUT", "Line index must be an integer")
		return 0, false
	}
	return index, true
}

func resolveSelections(product cart.Product, picks []SelectionRequest) ([]cart.SelectedAttribute, bool) {
	out := make([]cart.SelectedAttribute, 0, len(picks))
	for _, pick := range picks {
		sel, ok := product.Selection(pick.AttributeSetID, pick.ItemID)
		if !ok {
			return nil, false
		}
		out = append(out, sel)
	}
	return out, true
}
