package payment

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ferrybook/internal/config"
	"ferrybook/internal/domain"
	"ferrybook/internal/models"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSnap struct {
	mock.Mock
}

func (m *mockSnap) CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error) {
	args := m.Called(req)
	var resp *snap.Response
	if v := args.Get(0); v != nil {
		resp = v.(*snap.Response)
	}
	var mErr *midtrans.Error
	if v := args.Get(1); v != nil {
		mErr = v.(*midtrans.Error)
	}
	return resp, mErr
}

type mockCore struct {
	mock.Mock
}

func (m *mockCore) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error) {
	args := m.Called(orderID)
	var resp *coreapi.TransactionStatusResponse
	if v := args.Get(0); v != nil {
		resp = v.(*coreapi.TransactionStatusResponse)
	}
	var mErr *midtrans.Error
	if v := args.Get(1); v != nil {
		mErr = v.(*midtrans.Error)
	}
	return resp, mErr
}

func newTestGateway(s snapClient, c coreClient) *MidtransGateway {
	logger := zerolog.New(io.Discard)
	return &MidtransGateway{
		snap:      s,
		core:      c,
		serverKey: "SB-Mid-server-test",
		finishURL: "https://ferrybook.example/finish",
		logger:    &logger,
		now:       func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	}
}

func TestNewMidtransGateway(t *testing.T) {
	logger := zerolog.New(io.Discard)
	g := NewMidtransGateway(config.PaymentConfig{ServerKey: "key", ClientKey: "client"}, &logger)
	assert.Equal(t, "key", g.serverKey)
	assert.NotNil(t, g.snap)
	assert.NotNil(t, g.core)
}

func TestCreateTransaction(t *testing.T) {
	s := new(mockSnap)
	g := newTestGateway(s, new(mockCore))

	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	booking := &models.Booking{BookingCode: "FRY-ABC", PassengerCount: 2, DepartureDate: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)}
	payment := &models.Payment{OrderID: "FRY-ABC-1", Amount: 120000, ExpiresAt: &expires}

	s.On("CreateTransaction", mock.MatchedBy(func(req *snap.Request) bool {
		return req.TransactionDetails.OrderID == "FRY-ABC-1" &&
			req.TransactionDetails.GrossAmt == 120000 &&
			req.Callbacks != nil && req.Callbacks.Finish == "https://ferrybook.example/finish" &&
			req.Expiry != nil && req.Expiry.Duration == 120 && req.Expiry.Unit == "minute" &&
			req.Items != nil && len(*req.Items) == 1
	})).Return(&snap.Response{Token: "tok", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/tok"}, nil).Once()

	session, err := g.CreateTransaction(context.Background(), booking, payment)
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)
	assert.Contains(t, session.RedirectURL, "tok")
	s.AssertExpectations(t)
}

func TestCreateTransaction_Errors(t *testing.T) {
	booking := &models.Booking{BookingCode: "FRY-ABC", PassengerCount: 1}
	payment := &models.Payment{OrderID: "FRY-ABC-1", Amount: 60000}

	t.Run("GatewayError", func(t *testing.T) {
		s := new(mockSnap)
		g := newTestGateway(s, new(mockCore))
		s.On("CreateTransaction", mock.Anything).Return(nil, &midtrans.Error{Message: "unauthorized", StatusCode: 401}).Once()

		_, err := g.CreateTransaction(context.Background(), booking, payment)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
		assert.Contains(t, err.Error(), "unauthorized")
	})

	t.Run("EmptyToken", func(t *testing.T) {
		s := new(mockSnap)
		g := newTestGateway(s, new(mockCore))
		s.On("CreateTransaction", mock.Anything).Return(&snap.Response{}, nil).Once()

		_, err := g.CreateTransaction(context.Background(), booking, payment)
		assert.Error(t, err)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		s := new(mockSnap)
		g := newTestGateway(s, new(mockCore))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := g.CreateTransaction(ctx, booking, payment)
		assert.ErrorIs(t, err, context.Canceled)
		s.AssertNotCalled(t, "CreateTransaction", mock.Anything)
	})
}

func TestGetTransactionStatus(t *testing.T) {
	c := new(mockCore)
	g := newTestGateway(new(mockSnap), c)

	c.On("CheckTransaction", "FRY-ABC-1").Return(&coreapi.TransactionStatusResponse{
		OrderID:           "FRY-ABC-1",
		TransactionID:     "txn-1",
		TransactionStatus: "settlement",
		PaymentType:       "qris",
		StatusCode:        "200",
		GrossAmount:       "120000.00",
	}, nil).Once()
	c.On("CheckTransaction", "missing").Return(nil, &midtrans.Error{StatusCode: 404, RawError: errors.New("transaction doesn't exist")}).Once()

	st, err := g.GetTransactionStatus(context.Background(), "FRY-ABC-1")
	require.NoError(t, err)
	assert.Equal(t, &domain.GatewayStatus{
		OrderID:           "FRY-ABC-1",
		TransactionID:     "txn-1",
		TransactionStatus: "settlement",
		PaymentType:       "qris",
		StatusCode:        "200",
		GrossAmount:       "120000.00",
	}, st)

	_, err = g.GetTransactionStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't exist")
	c.AssertExpectations(t)
}

func TestVerifyNotification(t *testing.T) {
	g := newTestGateway(new(mockSnap), new(mockCore))

	n := &domain.GatewayStatus{OrderID: "FRY-ABC-1", StatusCode: "200", GrossAmount: "120000.00"}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, "SB-Mid-server-test")
	assert.Len(t, n.SignatureKey, 128)
	assert.True(t, g.VerifyNotification(n))

	tampered := *n
	tampered.GrossAmount = "1.00"
	assert.False(t, g.VerifyNotification(&tampered))

	unsigned := *n
	unsigned.SignatureKey = ""
	assert.False(t, g.VerifyNotification(&unsigned))
	assert.False(t, g.VerifyNotification(nil))

	g.serverKey = ""
	assert.False(t, g.VerifyNotification(n))
}

func TestGatewayError(t *testing.T) {
	assert.NoError(t, gatewayError("op", nil))
	err := gatewayError("op", &midtrans.Error{Message: "bad", StatusCode: 500})
	assert.EqualError(t, err, "midtrans op: status 500: bad")
}
