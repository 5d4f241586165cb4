package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/dto"
	"github.com/GlebRadaev/casino-wallet/internal/service/authservice"
	"github.com/GlebRadaev/casino-wallet/internal/service/referralservice"
	"github.com/GlebRadaev/casino-wallet/pkg/auth"
	"github.com/GlebRadaev/casino-wallet/pkg/utils"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func NewMock(t *testing.T) (*AuthHandler, *MockService) {
	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	handler := New(service)
	return handler, service
}

func TestRegisterHandler(t *testing.T) {
	handler, service := NewMock(t)
	account := &domain.Account{ID: 1, Login: "newuser", PasswordHash: "hashedpassword", Role: domain.RoleUser}
	referrer := 42

	tests := []struct {
		name          string
		body          string
		prepareMock   func()
		expectedCode  int
		expectedError string
		expectedToken string
	}{
		{
			name: "Successful registration",
			body: `{"login":"newuser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "newuser", "password123", gomock.Nil()).Return(account, nil)
				service.EXPECT().GenerateToken(account).Return("some-jwt-token", nil)
			},
			expectedCode:  http.StatusOK,
			expectedToken: "Bearer some-jwt-token",
		},
		{
			name: "Successful registration with referrer",
			body: `{"login":"newuser","password":"password123","referrer_id":42}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "newuser", "password123", &referrer).Return(account, nil)
				service.EXPECT().GenerateToken(account).Return("some-jwt-token", nil)
			},
			expectedCode:  http.StatusOK,
			expectedToken: "Bearer some-jwt-token",
		},
		{
			name: "User already exists",
			body: `{"login":"existinguser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "existinguser", "password123", gomock.Nil()).Return(nil, authservice.ErrLoginTaken)
			},
			expectedCode:  http.StatusConflict,
			expectedError: authservice.ErrLoginTaken.Error(),
		},
		{
			name: "Unknown referrer",
			body: `{"login":"newuser","password":"password123","referrer_id":42}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "newuser", "password123", &referrer).Return(nil, referralservice.ErrReferrerNotFound)
			},
			expectedCode:  http.StatusBadRequest,
			expectedError: referralservice.ErrReferrerNotFound.Error(),
		},
		{
			name: "Weak password",
			body: `{"login":"newuser","password":"123"}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "newuser", "123", gomock.Nil()).
					Return(nil, fmt.Errorf("hash: %w", auth.ErrWeakPassword))
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "Repository failure",
			body: `{"login":"newuser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "newuser", "password123", gomock.Nil()).Return(nil, errors.New("db down"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Internal server error",
		},
		{
			name:          "Invalid request body",
			body:          `{invalid json`,
			prepareMock:   func() {},
			expectedCode:  http.StatusBadRequest,
			expectedError: "Invalid request body",
		},
		{
			name: "Error generating token",
			body: `{"login":"newuser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().Register(context.Background(), "newuser", "password123", gomock.Nil()).Return(account, nil)
				service.EXPECT().GenerateToken(account).Return("", errors.New("token generation error"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Error generating token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader([]byte(tt.body)))
			rr := httptest.NewRecorder()

			handler.Register(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.Equal(t, tt.expectedToken, rr.Header().Get("Authorization"))

			if tt.expectedError != "" {
				var resp utils.Response
				err := json.NewDecoder(rr.Body).Decode(&resp)
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedError, resp.Message)
			}
			if tt.expectedCode == http.StatusOK {
				var resp dto.RegisterResponseDTO
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, 1, resp.AccountID)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	handler, service := NewMock(t)
	account := &domain.Account{ID: 1, Login: "testuser", PasswordHash: "hashedpassword", Role: domain.RoleAdmin}

	tests := []struct {
		name          string
		body          string
		prepareMock   func()
		expectedCode  int
		expectedError string
	}{
		{
			name: "Successful login",
			body: `{"login":"testuser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().
					Authenticate(context.Background(), "testuser", "password123").
					Return(account, nil)
				service.EXPECT().
					GenerateToken(account).
					Return("some-jwt-token", nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "Invalid credentials",
			body: `{"login":"testuser","password":"wrongpassword"}`,
			prepareMock: func() {
				service.EXPECT().
					Authenticate(context.Background(), "testuser", "wrongpassword").
					Return(nil, authservice.ErrInvalidCredentials)
			},
			expectedCode:  http.StatusUnauthorized,
			expectedError: "Invalid credentials",
		},
		{
			name:          "Invalid request body",
			body:          `{invalid json`,
			prepareMock:   func() {},
			expectedCode:  http.StatusBadRequest,
			expectedError: "Invalid request body",
		},
		{
			name: "Error generating token",
			body: `{"login":"testuser","password":"password123"}`,
			prepareMock: func() {
				service.EXPECT().
					Authenticate(context.Background(), "testuser", "password123").
					Return(account, nil)
				service.EXPECT().
					GenerateToken(account).
					Return("", errors.New("token generation error"))
			},
			expectedCode:  http.StatusInternalServerError,
			expectedError: "Error generating token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()

			req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader([]byte(tt.body)))
			rr := httptest.NewRecorder()

			handler.Login(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)

			if tt.expectedError != "" {
				var resp utils.Response
				err := json.NewDecoder(rr.Body).Decode(&resp)
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedError, resp.Message)
			}
			if tt.expectedCode == http.StatusOK {
				assert.Equal(t, "Bearer some-jwt-token", rr.Header().Get("Authorization"))
			}
		})
	}
}
