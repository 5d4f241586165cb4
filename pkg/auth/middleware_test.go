package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func TestAuthMiddleware(t *testing.T) {
	ctrl := gomock.NewController(t)
	jwtService := NewMockJWTServiceInterface(ctrl)

	tests := []struct {
		name         string
		header       string
		prepareMock  func()
		expectedCode int
	}{
		{
			name:   "Valid token",
			header: "Bearer good",
			prepareMock: func() {
				jwtService.EXPECT().ValidateToken("good").Return(&Claims{UserID: 7, Role: "admin"}, nil)
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "Missing header",
			prepareMock:  func() {},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "Wrong scheme",
			header:       "Basic abc",
			prepareMock:  func() {},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:   "Invalid token",
			header: "Bearer bad",
			prepareMock: func() {
				jwtService.EXPECT().ValidateToken("bad").Return(nil, errors.New("invalid token"))
			},
			expectedCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := UserID(r.Context())
				assert.True(t, ok)
				assert.Equal(t, 7, id)
				assert.Equal(t, "admin", r.Context().Value(RoleKey))
				w.WriteHeader(http.StatusOK)
			})

			r := httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(jwtService)(next).ServeHTTP(w, r)
			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name         string
		role         any
		expectedCode int
	}{
		{name: "Admin allowed", role: "admin", expectedCode: http.StatusOK},
		{name: "Superuser allowed", role: "superuser", expectedCode: http.StatusOK},
		{name: "User forbidden", role: "user", expectedCode: http.StatusForbidden},
		{name: "No role", role: nil, expectedCode: http.StatusForbidden},
	}

	handler := RequireRole("admin", "superuser")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/admin/withdrawals/pending", nil)
			if tt.role != nil {
				r = r.WithContext(contextWithRole(r, tt.role.(string)))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.expectedCode, w.Code)
		})
	}
}

func contextWithRole(r *http.Request, role string) context.Context {
	return context.WithValue(r.Context(), RoleKey, role)
}
