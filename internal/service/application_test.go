package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrimarket/internal/model"
)

var applicationCols = []string{"id", "order_request_id", "farmer_id", "farmer_name", "product_name", "price_per_unit",
	"available_quantity", "delivery_date", "notes", "status", "created_at", "updated_at"}

const (
	lockRequestQuery     = `SELECT status, allow_multiple_farmers FROM order_requests WHERE id = \$1 FOR UPDATE`
	countApplicationsSQL = `SELECT COUNT\(\*\) FILTER \(WHERE farmer_id = \$2\), COUNT\(\*\) FROM order_applications`
	insertApplicationSQL = `INSERT INTO order_applications`
	getApplicationSQL    = `FROM order_applications a JOIN order_requests r ON r.id = a.order_request_id LEFT JOIN users f ON f.id = a.farmer_id WHERE a.id = \$1`
	lockApplicationSQL   = `SELECT r.id, r.buyer_id, r.quantity, r.allow_multiple_farmers, a.status, a.available_quantity FROM order_applications a`
	sumAcceptedSQL       = `SELECT COALESCE\(SUM\(available_quantity\), 0\) FROM order_applications`
	closeRequestSQL      = `UPDATE order_requests SET status = 'closed' WHERE id = \$1 AND status = 'open'`
	decideApplicationSQL = `UPDATE order_applications SET status = \$1, updated_at = NOW\(\) WHERE id = \$2`
)

func applicationRow(id, farmerID string, qty int, status string) *sqlmock.Rows {
	ts := date(2024, 3, 1)
	return sqlmock.NewRows(applicationCols).
		AddRow(id, "req-1", farmerID, "Farmer", "Tomatoes", 2.5, qty, nil, "", status, ts, ts)
}

func submitInput(farmerID string) SubmitApplicationInput {
	return SubmitApplicationInput{
		OrderRequestID:    "req-1",
		FarmerID:          farmerID,
		PricePerUnit:      2.5,
		AvailableQuantity: 40,
	}
}

func expectLockRequest(mock sqlmock.Sqlmock, status string, allowMultiple bool) {
	mock.ExpectQuery(lockRequestQuery).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "allow_multiple_farmers"}).AddRow(status, allowMultiple))
}

func expectCounts(mock sqlmock.Sqlmock, farmerID string, mine, total int) {
	mock.ExpectQuery(countApplicationsSQL).
		WithArgs("req-1", farmerID).
		WillReturnRows(sqlmock.NewRows([]string{"mine", "total"}).AddRow(mine, total))
}

func TestSubmitCreatesPendingApplication(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectBegin()
	expectLockRequest(mock, model.RequestStatusOpen, true)
	expectCounts(mock, "farmer-1", 0, 2)
	mock.ExpectQuery(insertApplicationSQL).
		WithArgs("req-1", "farmer-1", 2.5, 40, nil, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("app-1"))
	mock.ExpectQuery(getApplicationSQL).
		WithArgs("app-1").
		WillReturnRows(applicationRow("app-1", "farmer-1", 40, model.ApplicationStatusPending))
	mock.ExpectCommit()

	app, err := svc.Submit(context.Background(), submitInput("farmer-1"))
	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID)
	assert.Equal(t, model.ApplicationStatusPending, app.Status)
	assert.Equal(t, "Tomatoes", app.ProductName)
}

func TestSubmitRejections(t *testing.T) {
	tests := []struct {
		name          string
		status        string
		allowMultiple bool
		mine, total   int
		want          error
	}{
		{name: "duplicate", status: model.RequestStatusOpen, allowMultiple: true, mine: 1, total: 1, want: ErrDuplicateApplication},
		{name: "closed request", status: model.RequestStatusClosed, allowMultiple: true, want: ErrRequestClosed},
		{name: "single farmer taken", status: model.RequestStatusOpen, allowMultiple: false, total: 1, want: ErrSingleFarmerOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			svc := NewApplicationService(db)

			mock.ExpectBegin()
			expectLockRequest(mock, tt.status, tt.allowMultiple)
			expectCounts(mock, "farmer-1", tt.mine, tt.total)
			mock.ExpectRollback()

			_, err := svc.Submit(context.Background(), submitInput("farmer-1"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmitSingleFarmerLockedEvenAfterRejection(t *testing.T) {
	// The only prior application was rejected; the count still includes it.
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectBegin()
	expectLockRequest(mock, model.RequestStatusOpen, false)
	expectCounts(mock, "farmer-2", 0, 1)
	mock.ExpectRollback()

	_, err := svc.Submit(context.Background(), submitInput("farmer-2"))
	assert.ErrorIs(t, err, ErrSingleFarmerOnly)
}

func TestSubmitUniqueViolationIsDuplicate(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectBegin()
	expectLockRequest(mock, model.RequestStatusOpen, true)
	expectCounts(mock, "farmer-1", 0, 0)
	mock.ExpectQuery(insertApplicationSQL).WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	_, err := svc.Submit(context.Background(), submitInput("farmer-1"))
	assert.ErrorIs(t, err, ErrDuplicateApplication)
}

func TestSubmitUnknownRequest(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockRequestQuery).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "allow_multiple_farmers"}))
	mock.ExpectRollback()

	_, err := svc.Submit(context.Background(), submitInput("farmer-1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitValidation(t *testing.T) {
	svc := NewApplicationService(nil)

	in := submitInput("farmer-1")
	in.PricePerUnit = 0
	_, err := svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrValidation)

	in = submitInput("")
	_, err = svc.Submit(context.Background(), in)
	assert.ErrorIs(t, err, ErrValidation)
}

func expectLockApplication(mock sqlmock.Sqlmock, appID, owner string, requested int, allowMultiple bool, status string, qty int) {
	mock.ExpectQuery(lockApplicationSQL).
		WithArgs(appID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "buyer_id", "quantity", "allow_multiple_farmers", "status", "available_quantity"}).
			AddRow("req-1", owner, requested, allowMultiple, status, qty))
}

func TestDecidePartialFulfilmentThenClose(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	// 40 of 100 accepted: request stays open.
	mock.ExpectBegin()
	expectLockApplication(mock, "app-1", "buyer-1", 100, true, model.ApplicationStatusPending, 40)
	mock.ExpectExec(decideApplicationSQL).
		WithArgs(model.ApplicationStatusAccepted, "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(sumAcceptedSQL).
		WithArgs("req-1", "app-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0))
	mock.ExpectQuery(getApplicationSQL).
		WithArgs("app-1").
		WillReturnRows(applicationRow("app-1", "farmer-1", 40, model.ApplicationStatusAccepted))
	mock.ExpectCommit()

	app, err := svc.Decide(context.Background(), "app-1", "buyer-1", model.ApplicationStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusAccepted, app.Status)

	// another 60 reaches the requested quantity: request closes.
	mock.ExpectBegin()
	expectLockApplication(mock, "app-2", "buyer-1", 100, true, model.ApplicationStatusPending, 60)
	mock.ExpectExec(decideApplicationSQL).
		WithArgs(model.ApplicationStatusAccepted, "app-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(sumAcceptedSQL).
		WithArgs("req-1", "app-2").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(40))
	mock.ExpectExec(closeRequestSQL).
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(getApplicationSQL).
		WithArgs("app-2").
		WillReturnRows(applicationRow("app-2", "farmer-2", 60, model.ApplicationStatusAccepted))
	mock.ExpectCommit()

	_, err = svc.Decide(context.Background(), "app-2", "buyer-1", model.ApplicationStatusAccepted)
	require.NoError(t, err)
}

func TestDecideSingleFarmerAcceptCloses(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectBegin()
	expectLockApplication(mock, "app-1", "buyer-1", 100, false, model.ApplicationStatusPending, 10)
	mock.ExpectExec(decideApplicationSQL).
		WithArgs(model.ApplicationStatusAccepted, "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(sumAcceptedSQL).
		WithArgs("req-1", "app-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0))
	mock.ExpectExec(closeRequestSQL).
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(getApplicationSQL).
		WithArgs("app-1").
		WillReturnRows(applicationRow("app-1", "farmer-1", 10, model.ApplicationStatusAccepted))
	mock.ExpectCommit()

	_, err := svc.Decide(context.Background(), "app-1", "buyer-1", model.ApplicationStatusAccepted)
	require.NoError(t, err)
}

func TestDecideRejectLeavesRequestAlone(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectBegin()
	expectLockApplication(mock, "app-1", "buyer-1", 100, false, model.ApplicationStatusPending, 10)
	mock.ExpectExec(decideApplicationSQL).
		WithArgs(model.ApplicationStatusRejected, "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(getApplicationSQL).
		WithArgs("app-1").
		WillReturnRows(applicationRow("app-1", "farmer-1", 10, model.ApplicationStatusRejected))
	mock.ExpectCommit()

	app, err := svc.Decide(context.Background(), "app-1", "buyer-1", model.ApplicationStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusRejected, app.Status)
}

func TestDecideWrongBuyerMutatesNothing(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectBegin()
	expectLockApplication(mock, "app-1", "buyer-1", 100, true, model.ApplicationStatusPending, 40)
	mock.ExpectRollback()

	_, err := svc.Decide(context.Background(), "app-1", "buyer-2", model.ApplicationStatusAccepted)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDecideAlreadyDecided(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectBegin()
	expectLockApplication(mock, "app-1", "buyer-1", 100, true, model.ApplicationStatusRejected, 40)
	mock.ExpectRollback()

	_, err := svc.Decide(context.Background(), "app-1", "buyer-1", model.ApplicationStatusAccepted)
	assert.ErrorIs(t, err, ErrAlreadyDecided)
}

func TestDecideInvalidStatus(t *testing.T) {
	svc := NewApplicationService(nil)

	_, err := svc.Decide(context.Background(), "app-1", "buyer-1", model.ApplicationStatusPending)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDecideUnknownApplication(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockApplicationSQL).
		WithArgs("app-9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "buyer_id", "quantity", "allow_multiple_farmers", "status", "available_quantity"}))
	mock.ExpectRollback()

	_, err := svc.Decide(context.Background(), "app-9", "buyer-1", model.ApplicationStatusAccepted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByFarmer(t *testing.T) {
	db, mock := newMock(t)
	svc := NewApplicationService(db)

	mock.ExpectQuery(`WHERE a.farmer_id = \$1 ORDER BY a.created_at DESC`).
		WithArgs("farmer-1").
		WillReturnRows(applicationRow("app-1", "farmer-1", 40, model.ApplicationStatusPending))

	apps, err := svc.ListByFarmer(context.Background(), "farmer-1")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "farmer-1", apps[0].FarmerID)
}
