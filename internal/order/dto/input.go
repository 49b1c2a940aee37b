package dto

import "github.com/fekuna/omnipos-order-service/internal/model"

// CreateOrderInput is a checkout of the session cart.
type CreateOrderInput struct {
	Cart      model.CartSnapshot
	OrderType model.OrderType
	TableID   *string
}
