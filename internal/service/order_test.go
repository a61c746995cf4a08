package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket/internal/model"
)

var orderCols = []string{"id", "buyer_id", "seller_id", "product_id", "product_name", "quantity", "unit_price",
	"total_price", "delivery_address", "notes", "status", "created_at", "updated_at"}

const lockProductSQL = `SELECT farmer_id, price, quantity FROM products WHERE id = \$1 FOR UPDATE`

func orderRow(id, status string) *sqlmock.Rows {
	ts := date(2024, 3, 1)
	return sqlmock.NewRows(orderCols).
		AddRow(id, "buyer-1", "farmer-1", "prod-1", "Tomatoes", 10, 2.5, 25.0, "Market St 1", "", status, ts, ts)
}

func expectLockProduct(mock sqlmock.Sqlmock, stock int) {
	mock.ExpectQuery(lockProductSQL).
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows([]string{"farmer_id", "price", "quantity"}).AddRow("farmer-1", 2.5, stock))
}

func TestCreateOrderDecrementsStock(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db)

	mock.ExpectBegin()
	expectLockProduct(mock, 30)
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs("buyer-1", "farmer-1", "prod-1", 10, 2.5, 25.0, "Market St 1", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ord-1"))
	mock.ExpectExec(`UPDATE products SET quantity = quantity - \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs(10, "prod-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`WHERE o.id = \$1`).
		WithArgs("ord-1").
		WillReturnRows(orderRow("ord-1", model.OrderStatusPending))
	mock.ExpectCommit()

	order, err := svc.Create(context.Background(), CreateOrderInput{
		BuyerID:         "buyer-1",
		ProductID:       "prod-1",
		Quantity:        10,
		DeliveryAddress: "Market St 1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", order.ID)
	assert.Equal(t, model.OrderStatusPending, order.Status)
}

func TestCreateOrderInsufficientStockLeavesProduct(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db)

	mock.ExpectBegin()
	expectLockProduct(mock, 5)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), CreateOrderInput{BuyerID: "buyer-1", ProductID: "prod-1", Quantity: 10})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockProductSQL).
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows([]string{"farmer_id", "price", "quantity"}))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), CreateOrderInput{BuyerID: "buyer-1", ProductID: "prod-1", Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByUserType(t *testing.T) {
	tests := []struct {
		userType string
		column   string
	}{
		{userType: model.RoleBuyer, column: `o.buyer_id`},
		{userType: model.RoleFarmer, column: `o.seller_id`},
		{userType: "seller", column: `o.seller_id`},
	}

	for _, tt := range tests {
		t.Run(tt.userType, func(t *testing.T) {
			db, mock := newMock(t)
			svc := NewOrderService(db)

			mock.ExpectQuery(`WHERE ` + tt.column + ` = \$1 ORDER BY o.created_at DESC`).
				WithArgs("user-1").
				WillReturnRows(orderRow("ord-1", model.OrderStatusPending))

			orders, err := svc.ListByUser(context.Background(), "user-1", tt.userType)
			require.NoError(t, err)
			assert.Len(t, orders, 1)
		})
	}
}

func TestListOrdersUnknownUserType(t *testing.T) {
	svc := NewOrderService(nil)

	_, err := svc.ListByUser(context.Background(), "user-1", "admin")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateOrderStatus(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db)

	mock.ExpectExec(`UPDATE orders SET status = \$1`).
		WithArgs(model.OrderStatusShipped, "ord-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`WHERE o.id = \$1`).
		WithArgs("ord-1").
		WillReturnRows(orderRow("ord-1", model.OrderStatusShipped))

	order, err := svc.UpdateStatus(context.Background(), "ord-1", model.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, order.Status)
}

func TestUpdateOrderStatusRejectsUnknown(t *testing.T) {
	svc := NewOrderService(nil)

	_, err := svc.UpdateStatus(context.Background(), "ord-1", "lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateOrderStatusMissingOrder(t *testing.T) {
	db, mock := newMock(t)
	svc := NewOrderService(db)

	mock.ExpectExec(`UPDATE orders SET status = \$1`).
		WithArgs(model.OrderStatusDelivered, "ord-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := svc.UpdateStatus(context.Background(), "ord-9", model.OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrNotFound)
}
