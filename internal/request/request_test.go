package request

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestClientIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		wantIP  string
	}{
		{"x-forwarded-for", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "", "1.2.3.4"},
		{"x-forwarded-for first", map[string]string{"X-Forwarded-For": " 1.2.3.4 , 5.6.7.8 "}, "", "1.2.3.4"},
		{"x-real-ip", map[string]string{"X-Real-IP": "9.9.9.9"}, "", "9.9.9.9"},
		{"remote addr without port", nil, "10.0.0.1:12345", "10.0.0.1"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr without port number", nil, "10.0.0.2", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if tt.remote != "" {
				r.RemoteAddr = tt.remote
			}
			if got := ClientIP(r); got != tt.wantIP {
				t.Errorf("ClientIP() = %q, want %q", got, tt.wantIP)
			}
		})
	}
}

func TestParseUserID(t *testing.T) {
	t.Parallel()
	valid := uuid.New()
	tests := []struct {
		name    string
		header  string
		want    uuid.UUID
		wantErr bool
	}{
		{name: "valid", header: valid.String(), want: valid},
		{name: "padded", header: "  " + valid.String() + " ", want: valid},
		{name: "missing", header: "", wantErr: true},
		{name: "garbage", header: "bob", wantErr: true},
		{name: "nil uuid", header: uuid.Nil.String(), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set(UserIDHeader, tt.header)
			}
			got, err := ParseUserID(r)
			if tt.wantErr {
				if !errors.Is(err, ErrMissingUserID) {
					t.Errorf("ParseUserID() error = %v, want ErrMissingUserID", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseUserID() = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}

func TestUserID(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	r := httptest.NewRequest("GET", "/", nil).WithContext(WithUserID(context.Background(), id))
	if got, ok := UserID(r); !ok || got != id {
		t.Errorf("UserID() = %v, %v; want %v", got, ok, id)
	}

	if _, ok := UserID(httptest.NewRequest("GET", "/", nil)); ok {
		t.Error("UserID() on bare request should report false")
	}

	ctx := context.WithValue(context.Background(), userIDContextKey, "not a uuid")
	if _, ok := UserID(httptest.NewRequest("GET", "/", nil).WithContext(ctx)); ok {
		t.Error("UserID() with wrong type should report false")
	}
}
