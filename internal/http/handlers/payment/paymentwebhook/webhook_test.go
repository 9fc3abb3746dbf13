package paymentwebhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/magabrotheeeer/worksmart-portal/internal/models"
	"github.com/magabrotheeeer/worksmart-portal/internal/product"
	"github.com/magabrotheeeer/worksmart-portal/internal/services/entitlement"
	"github.com/magabrotheeeer/worksmart-portal/internal/storage"
)

const testSecret = "whsec_test"

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) HandleCheckoutCompleted(ctx context.Context, c models.CheckoutCompletion) (entitlement.GrantResult, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(entitlement.GrantResult), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func completedEvent(accountID, productType string) string {
	return sessionEvent("checkout.session.completed", models.PaymentStatusPaid, accountID, productType)
}

func sessionEvent(eventType, paymentStatus, accountID, productType string) string {
	return fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "type": %q,
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "client_reference_id": %q,
    "payment_status": %q,
    "metadata": {"account_id": %q, "product_type": %q}
  }}
}`, eventType, accountID, paymentStatus, accountID, productType)
}

func signedRequest(t *testing.T, payload, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader([]byte(payload)))
	if secret != "" {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   []byte(payload),
			Secret:    secret,
			Timestamp: time.Now(),
		})
		req.Header.Set("Stripe-Signature", signed.Header)
	}
	return req
}

func TestWebhookHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		handlerSecret  string
		signSecret     string
		payload        string
		setupMock      func(*MockWriter)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "secret not configured",
			signSecret:     testSecret,
			payload:        completedEvent("u1", "wealth-course"),
			setupMock:      func(*MockWriter) {},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"Error","error":"configuration missing"}`,
		},
		{
			name:           "missing signature",
			handlerSecret:  testSecret,
			payload:        completedEvent("u1", "wealth-course"),
			setupMock:      func(*MockWriter) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"signature verification failed"}`,
		},
		{
			name:           "signed with another secret",
			handlerSecret:  testSecret,
			signSecret:     "whsec_attacker",
			payload:        completedEvent("u1", "wealth-course"),
			setupMock:      func(*MockWriter) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"signature verification failed"}`,
		},
		{
			name:           "ignored event type",
			handlerSecret:  testSecret,
			signSecret:     testSecret,
			payload:        `{"id":"evt_2","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`,
			setupMock:      func(*MockWriter) {},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"received":true}`,
		},
		{
			name:          "granted",
			handlerSecret: testSecret,
			signSecret:    testSecret,
			payload:       completedEvent("u1", "tool:write-it-better"),
			setupMock: func(m *MockWriter) {
				m.On("HandleCheckoutCompleted", mock.Anything, mock.MatchedBy(func(c models.CheckoutCompletion) bool {
					return c.SessionID == "cs_test_1" &&
						c.PaymentStatus == models.PaymentStatusPaid &&
						c.Metadata[models.MetadataAccountID] == "u1" &&
						c.Metadata[models.MetadataProductType] == "tool:write-it-better"
				})).Return(entitlement.GrantResult{Outcome: entitlement.Granted}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"received":true}`,
		},
		{
			name:          "duplicate",
			handlerSecret: testSecret,
			signSecret:    testSecret,
			payload:       completedEvent("u1", "wealth-course"),
			setupMock: func(m *MockWriter) {
				m.On("HandleCheckoutCompleted", mock.Anything, mock.Anything).
					Return(entitlement.GrantResult{Outcome: entitlement.Duplicate}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"received":true}`,
		},
		{
			name:          "async payment succeeded",
			handlerSecret: testSecret,
			signSecret:    testSecret,
			payload:       sessionEvent("checkout.session.async_payment_succeeded", models.PaymentStatusPaid, "u1", "wealth-course"),
			setupMock: func(m *MockWriter) {
				m.On("HandleCheckoutCompleted", mock.Anything, mock.MatchedBy(func(c models.CheckoutCompletion) bool {
					return c.Metadata[models.MetadataAccountID] == "u1" && c.Settled()
				})).Return(entitlement.GrantResult{Outcome: entitlement.Granted}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"received":true}`,
		},
		{
			name:          "completed but unpaid",
			handlerSecret: testSecret,
			signSecret:    testSecret,
			payload:       sessionEvent("checkout.session.completed", "unpaid", "u1", "wealth-course"),
			setupMock: func(m *MockWriter) {
				m.On("HandleCheckoutCompleted", mock.Anything, mock.MatchedBy(func(c models.CheckoutCompletion) bool {
					return c.PaymentStatus == "unpaid"
				})).Return(entitlement.GrantResult{Outcome: entitlement.AwaitingPayment}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"received":true}`,
		},
		{
			name:          "malformed event",
			handlerSecret: testSecret,
			signSecret:    testSecret,
			payload:       completedEvent("", "wealth-course"),
			setupMock: func(m *MockWriter) {
				m.On("HandleCheckoutCompleted", mock.Anything, mock.Anything).
					Return(entitlement.GrantResult{}, fmt.Errorf("entitlement.HandleCheckoutCompleted: %w", models.ErrMalformedEvent)).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"malformed event"}`,
		},
		{
			name:          "write failure",
			handlerSecret: testSecret,
			signSecret:    testSecret,
			payload:       completedEvent("u1", "wealth-course"),
			setupMock: func(m *MockWriter) {
				m.On("HandleCheckoutCompleted", mock.Anything, mock.Anything).
					Return(entitlement.GrantResult{}, errors.New("connection reset")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"failed to record purchase"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := new(MockWriter)
			tt.setupMock(writer)
			handler := New(newNoopLogger(), writer, tt.handlerSecret, nil)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, signedRequest(t, tt.payload, tt.signSecret))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			writer.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_TamperedBody(t *testing.T) {
	writer := new(MockWriter)
	handler := New(newNoopLogger(), writer, testSecret, nil)

	req := signedRequest(t, completedEvent("u1", "wealth-course"), testSecret)
	tampered := strings.Replace(completedEvent("u1", "wealth-course"), "wealth-course", "productivity-course", 1)
	req.Body = io.NopCloser(strings.NewReader(tampered))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	writer.AssertNotCalled(t, "HandleCheckoutCompleted", mock.Anything, mock.Anything)
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	handler := New(newNoopLogger(), new(MockWriter), testSecret, nil)

	big := bytes.Repeat([]byte("a"), bodyLimit+1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(big))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// memStore хранит записи с уникальной парой (аккаунт, продукт).
type memStore struct {
	mu   sync.Mutex
	rows map[string]models.Entitlement
}

func (s *memStore) FindEntitlement(_ context.Context, accountID, productType string) (*models.Entitlement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[accountID+"|"+productType]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (s *memStore) CreateEntitlement(_ context.Context, e models.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.AccountID + "|" + e.ProductType
	if _, ok := s.rows[key]; ok {
		return storage.ErrEntitlementExists
	}
	s.rows[key] = e
	return nil
}

func (s *memStore) ListEntitlements(_ context.Context, accountID string) ([]*models.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := []*models.Entitlement{}
	for _, e := range s.rows {
		if e.AccountID == accountID {
			e := e
			res = append(res, &e)
		}
	}
	return res, nil
}

func TestWebhookHandler_RedeliveryGrantsOnce(t *testing.T) {
	store := &memStore{rows: map[string]models.Entitlement{}}
	writer := entitlement.NewWriter(store, nil, nil, nil, newNoopLogger())
	reader := entitlement.NewReader(store, nil, time.Minute, newNoopLogger())
	handler := New(newNoopLogger(), writer, testSecret, nil)
	payload := completedEvent("u1", "tool:write-it-better")

	for range 3 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, signedRequest(t, payload, testSecret))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"received":true}`, w.Body.String())
	}

	list, err := reader.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "tool:write-it-better", list[0].ProductType)

	tool, err := product.Parse("tool:write-it-better")
	require.NoError(t, err)
	owned, err := reader.Owns(context.Background(), "u1", tool)
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = reader.Owns(context.Background(), "u1", product.Wealth())
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestWebhookHandler_DelayedPaymentGrantsAfterAsyncSuccess(t *testing.T) {
	store := &memStore{rows: map[string]models.Entitlement{}}
	writer := entitlement.NewWriter(store, nil, nil, nil, newNoopLogger())
	reader := entitlement.NewReader(store, nil, time.Minute, newNoopLogger())
	handler := New(newNoopLogger(), writer, testSecret, nil)
	ctx := context.Background()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, signedRequest(t, sessionEvent("checkout.session.completed", "unpaid", "u1", "wealth-course"), testSecret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	owned, err := reader.Owns(ctx, "u1", product.Wealth())
	require.NoError(t, err)
	assert.False(t, owned, "unpaid session must not grant access")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, signedRequest(t, sessionEvent("checkout.session.async_payment_succeeded", models.PaymentStatusPaid, "u1", "wealth-course"), testSecret))
	require.Equal(t, http.StatusOK, w.Code)

	owned, err = reader.Owns(ctx, "u1", product.Wealth())
	require.NoError(t, err)
	assert.True(t, owned)

	list, err := reader.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
