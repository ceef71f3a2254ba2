package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bakate/aeroreserve/internal/domain"
	"github.com/bakate/aeroreserve/internal/dto"
	"github.com/bakate/aeroreserve/internal/service"
	"github.com/bakate/aeroreserve/pkg/response"
)

// MockBookingService is a mock implementation of BookingService for testing
type MockBookingService struct {
	BookFlightFunc             func(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error)
	ConfirmBookingFunc         func(ctx context.Context, bookingID string, req *dto.ConfirmBookingRequest) (*dto.BookingResponse, error)
	CancelBookingFunc          func(ctx context.Context, bookingID string, req *dto.CancelBookingRequest) (*dto.BookingResponse, error)
	GetBookingFunc             func(ctx context.Context, bookingID string) (*dto.BookingDetailResponse, error)
	GetBookingsByPassengerFunc func(ctx context.Context, passengerID string) ([]*dto.BookingResponse, error)
}

func (m *MockBookingService) BookFlight(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error) {
	if m.BookFlightFunc != nil {
		return m.BookFlightFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockBookingService) ConfirmBooking(ctx context.Context, bookingID string, req *dto.ConfirmBookingRequest) (*dto.BookingResponse, error) {
	if m.ConfirmBookingFunc != nil {
		return m.ConfirmBookingFunc(ctx, bookingID, req)
	}
	return nil, nil
}

func (m *MockBookingService) CancelBooking(ctx context.Context, bookingID string, req *dto.CancelBookingRequest) (*dto.BookingResponse, error) {
	if m.CancelBookingFunc != nil {
		return m.CancelBookingFunc(ctx, bookingID, req)
	}
	return nil, nil
}

func (m *MockBookingService) GetBooking(ctx context.Context, bookingID string) (*dto.BookingDetailResponse, error) {
	if m.GetBookingFunc != nil {
		return m.GetBookingFunc(ctx, bookingID)
	}
	return nil, nil
}

func (m *MockBookingService) GetBookingsByPassenger(ctx context.Context, passengerID string) ([]*dto.BookingResponse, error) {
	if m.GetBookingsByPassengerFunc != nil {
		return m.GetBookingsByPassengerFunc(ctx, passengerID)
	}
	return nil, nil
}

// handlerTestSecret signs manage tokens in handler tests only
const handlerTestSecret = "handler-test-manage-secret"

// newTestBookingHandler builds a handler with the token guard disabled
func newTestBookingHandler(bookingService *MockBookingService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		requireToken:   false,
	}
}

// newGuardedBookingHandler builds a handler enforcing manage tokens
func newGuardedBookingHandler(bookingService *MockBookingService, tokens service.ManageTokenService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		tokens:         tokens,
		requireToken:   true,
	}
}

func setupBookingRouter(handler *BookingHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	bookings := router.Group("/bookings")
	{
		bookings.POST("", handler.CreateBooking)
		bookings.GET("", handler.ListBookings)
		bookings.GET("/:id", handler.GetBooking)
		bookings.POST("/:id/confirm", handler.ConfirmBooking)
		bookings.POST("/:id/cancel", handler.CancelBooking)
	}

	return router
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) response.Response {
	t.Helper()
	var envelope response.Response
	if err := json.Unmarshal(body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	return envelope
}

func sampleBookingResponse(id string) *dto.BookingResponse {
	return &dto.BookingResponse{
		ID:           id,
		PnrCode:      "AB12CD",
		Status:       string(domain.BookingStatusHeld),
		ContactEmail: "ada@example.com",
		CreatedAt:    time.Now(),
	}
}

func TestBookingHandler_CreateBooking(t *testing.T) {
	validBody := `{
		"flight_id": "FL-123",
		"cabin": "economy",
		"passenger": {"first_name": "Ada", "last_name": "Lovelace"},
		"contact_email": "ada@example.com"
	}`

	tests := []struct {
		name           string
		body           string
		mockFunc       func(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "successful booking",
			body: validBody,
			mockFunc: func(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error) {
				return &dto.BookFlightResponse{
					Booking:     sampleBookingResponse("booking-123"),
					CheckoutURL: "https://checkout.example.com/cs_1",
					ManageToken: "signed.manage.token",
				}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "malformed json",
			body:           `{"flight_id": `,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name:           "missing contact email",
			body:           `{"flight_id": "FL-123", "cabin": "economy", "passenger": {"first_name": "Ada", "last_name": "Lovelace"}}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name: "flight full",
			body: validBody,
			mockFunc: func(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error) {
				return nil, domain.ErrFlightFull
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "FLIGHT_FULL",
		},
		{
			name: "payment declined",
			body: validBody,
			mockFunc: func(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error) {
				return nil, domain.ErrPaymentDeclined
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedCode:   "PAYMENT_DECLINED",
		},
		{
			name: "payment provider down",
			body: validBody,
			mockFunc: func(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error) {
				return nil, domain.ErrPaymentUnavailable
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "PAYMENT_UNAVAILABLE",
		},
		{
			name: "record locator exhausted",
			body: validBody,
			mockFunc: func(ctx context.Context, req *dto.BookFlightRequest) (*dto.BookFlightResponse, error) {
				return nil, domain.ErrPnrExhausted
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "PNR_EXHAUSTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBookingService{BookFlightFunc: tt.mockFunc}
			router := setupBookingRouter(newTestBookingHandler(mockService))

			req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedCode != "" {
				envelope := decodeEnvelope(t, w.Body)
				if envelope.Error == nil || envelope.Error.Code != tt.expectedCode {
					t.Errorf("expected error code %s, got %+v", tt.expectedCode, envelope.Error)
				}
			}
		})
	}
}

func TestBookingHandler_GetBooking_TokenGuard(t *testing.T) {
	tokens := service.NewManageTokenService(&service.ManageTokenConfig{Secret: handlerTestSecret})
	validToken, _, err := tokens.Issue("booking-123", domain.PnrCode("AB12CD"))
	if err != nil {
		t.Fatalf("failed to issue test token: %v", err)
	}

	tests := []struct {
		name           string
		authorization  string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "valid token",
			authorization:  "Bearer " + validToken,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing header",
			authorization:  "",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "MISSING_TOKEN",
		},
		{
			name:           "malformed header",
			authorization:  "Bearer",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
		{
			name:           "tampered token",
			authorization:  "Bearer " + validToken[:len(validToken)-4] + "XXXX",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "UNAUTHORIZED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			served := false
			mockService := &MockBookingService{
				GetBookingFunc: func(ctx context.Context, bookingID string) (*dto.BookingDetailResponse, error) {
					served = true
					return &dto.BookingDetailResponse{Booking: sampleBookingResponse(bookingID)}, nil
				},
			}
			router := setupBookingRouter(newGuardedBookingHandler(mockService, tokens))

			req := httptest.NewRequest(http.MethodGet, "/bookings/booking-123", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedCode != "" {
				envelope := decodeEnvelope(t, w.Body)
				if envelope.Error == nil || envelope.Error.Code != tt.expectedCode {
					t.Errorf("expected error code %s, got %+v", tt.expectedCode, envelope.Error)
				}
				if served {
					t.Error("service must not be reached when the token is rejected")
				}
			}
		})
	}
}

func TestBookingHandler_GetBooking_TokenForOtherBooking(t *testing.T) {
	tokens := service.NewManageTokenService(&service.ManageTokenConfig{Secret: handlerTestSecret})
	otherToken, _, err := tokens.Issue("booking-999", domain.PnrCode("ZZ99XX"))
	if err != nil {
		t.Fatalf("failed to issue test token: %v", err)
	}

	mockService := &MockBookingService{}
	router := setupBookingRouter(newGuardedBookingHandler(mockService, tokens))

	req := httptest.NewRequest(http.MethodGet, "/bookings/booking-123", nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d: %s", http.StatusForbidden, w.Code, w.Body.String())
	}
	envelope := decodeEnvelope(t, w.Body)
	if envelope.Error == nil || envelope.Error.Code != "MANAGE_TOKEN_MISMATCH" {
		t.Errorf("expected MANAGE_TOKEN_MISMATCH, got %+v", envelope.Error)
	}
}

func TestBookingHandler_GetBooking_NotFound(t *testing.T) {
	mockService := &MockBookingService{
		GetBookingFunc: func(ctx context.Context, bookingID string) (*dto.BookingDetailResponse, error) {
			return nil, domain.ErrBookingNotFound
		},
	}
	router := setupBookingRouter(newTestBookingHandler(mockService))

	req := httptest.NewRequest(http.MethodGet, "/bookings/missing", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	envelope := decodeEnvelope(t, w.Body)
	if envelope.Error == nil || envelope.Error.Code != "BOOKING_NOT_FOUND" {
		t.Errorf("expected BOOKING_NOT_FOUND, got %+v", envelope.Error)
	}
}

func TestBookingHandler_ConfirmBooking_EmptyBodyPassesNilRequest(t *testing.T) {
	var captured *dto.ConfirmBookingRequest
	confirmed := false
	mockService := &MockBookingService{
		ConfirmBookingFunc: func(ctx context.Context, bookingID string, req *dto.ConfirmBookingRequest) (*dto.BookingResponse, error) {
			captured = req
			confirmed = true
			resp := sampleBookingResponse(bookingID)
			resp.Status = string(domain.BookingStatusConfirmed)
			return resp, nil
		},
	}
	router := setupBookingRouter(newTestBookingHandler(mockService))

	req := httptest.NewRequest(http.MethodPost, "/bookings/booking-123/confirm", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if !confirmed {
		t.Fatal("expected the service to be called")
	}
	if captured != nil {
		t.Errorf("expected nil confirmation request for an empty body, got %+v", captured)
	}
}

func TestBookingHandler_ConfirmBooking_BodyForwarded(t *testing.T) {
	var captured *dto.ConfirmBookingRequest
	mockService := &MockBookingService{
		ConfirmBookingFunc: func(ctx context.Context, bookingID string, req *dto.ConfirmBookingRequest) (*dto.BookingResponse, error) {
			captured = req
			resp := sampleBookingResponse(bookingID)
			resp.Status = string(domain.BookingStatusConfirmed)
			return resp, nil
		},
	}
	router := setupBookingRouter(newTestBookingHandler(mockService))

	body := `{"checkout_id": "cs_1", "transaction_id": "pi_1"}`
	req := httptest.NewRequest(http.MethodPost, "/bookings/booking-123/confirm", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if captured == nil {
		t.Fatal("expected the confirmation request to be forwarded")
	}
	if captured.CheckoutID != "cs_1" || captured.TransactionID != "pi_1" {
		t.Errorf("unexpected confirmation payload: %+v", captured)
	}
}

func TestBookingHandler_ConfirmBooking_TerminalState(t *testing.T) {
	mockService := &MockBookingService{
		ConfirmBookingFunc: func(ctx context.Context, bookingID string, req *dto.ConfirmBookingRequest) (*dto.BookingResponse, error) {
			return nil, domain.ErrInvalidBookingState
		},
	}
	router := setupBookingRouter(newTestBookingHandler(mockService))

	req := httptest.NewRequest(http.MethodPost, "/bookings/booking-123/confirm", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
	envelope := decodeEnvelope(t, w.Body)
	if envelope.Error == nil || envelope.Error.Code != "INVALID_STATE" {
		t.Errorf("expected INVALID_STATE, got %+v", envelope.Error)
	}
}

func TestBookingHandler_CancelBooking(t *testing.T) {
	tokens := service.NewManageTokenService(&service.ManageTokenConfig{Secret: handlerTestSecret})
	validToken, _, err := tokens.Issue("booking-123", domain.PnrCode("AB12CD"))
	if err != nil {
		t.Fatalf("failed to issue test token: %v", err)
	}

	var capturedReason *dto.CancelBookingRequest
	mockService := &MockBookingService{
		CancelBookingFunc: func(ctx context.Context, bookingID string, req *dto.CancelBookingRequest) (*dto.BookingResponse, error) {
			capturedReason = req
			resp := sampleBookingResponse(bookingID)
			resp.Status = string(domain.BookingStatusCancelled)
			resp.CancelReason = "schedule_change"
			return resp, nil
		},
	}
	router := setupBookingRouter(newGuardedBookingHandler(mockService, tokens))

	body := `{"reason": "schedule_change"}`
	req := httptest.NewRequest(http.MethodPost, "/bookings/booking-123/cancel", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+validToken)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if capturedReason == nil || capturedReason.Reason != "schedule_change" {
		t.Errorf("expected cancel reason to be forwarded, got %+v", capturedReason)
	}
}

func TestBookingHandler_CancelBooking_RequiresToken(t *testing.T) {
	tokens := service.NewManageTokenService(&service.ManageTokenConfig{Secret: handlerTestSecret})
	cancelled := false
	mockService := &MockBookingService{
		CancelBookingFunc: func(ctx context.Context, bookingID string, req *dto.CancelBookingRequest) (*dto.BookingResponse, error) {
			cancelled = true
			return sampleBookingResponse(bookingID), nil
		},
	}
	router := setupBookingRouter(newGuardedBookingHandler(mockService, tokens))

	req := httptest.NewRequest(http.MethodPost, "/bookings/booking-123/cancel", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	if cancelled {
		t.Error("cancel must not run without a manage token")
	}
}

func TestBookingHandler_ListBookings(t *testing.T) {
	mockService := &MockBookingService{
		GetBookingsByPassengerFunc: func(ctx context.Context, passengerID string) ([]*dto.BookingResponse, error) {
			return []*dto.BookingResponse{sampleBookingResponse("booking-1"), sampleBookingResponse("booking-2")}, nil
		},
	}
	router := setupBookingRouter(newTestBookingHandler(mockService))

	req := httptest.NewRequest(http.MethodGet, "/bookings?passenger_id=pax-1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	envelope := decodeEnvelope(t, w.Body)
	if !envelope.Success {
		t.Errorf("expected success envelope, got %s", w.Body.String())
	}
}

func TestBookingHandler_ListBookings_MissingPassengerID(t *testing.T) {
	router := setupBookingRouter(newTestBookingHandler(&MockBookingService{}))

	req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}
