package auth_test

import (
	"testing"
	"time"

	"github.com/ai-task-scheduler/engine/internal/auth"
)

func newTestService(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{
		SecretKey:     "test-secret",
		Issuer:        "test-issuer",
		TokenExpiry:   time.Hour,
		RefreshExpiry: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := auth.NewJWTService(auth.JWTConfig{})
	if err == nil {
		t.Fatal("expected error for missing secret key")
	}
}

func TestGenerateAndValidateToken_RoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.GenerateToken("user-1", "alice", auth.RoleOperator, "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Username != "alice" || claims.Role != auth.RoleOperator || claims.OrgID != "org-1" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestValidateToken_WrongSecret_Rejected(t *testing.T) {
	svc := newTestService(t)
	other, _ := auth.NewJWTService(auth.JWTConfig{SecretKey: "different-secret", TokenExpiry: time.Hour})

	token, _ := svc.GenerateToken("user-1", "alice", auth.RoleViewer, "")
	_, err := other.ValidateToken(token)
	if err == nil {
		t.Fatal("expected validation to fail with the wrong secret")
	}
}

func TestValidateToken_Expired_Rejected(t *testing.T) {
	svc, _ := auth.NewJWTService(auth.JWTConfig{SecretKey: "test-secret", TokenExpiry: -time.Hour})

	token, err := svc.GenerateToken("user-1", "alice", auth.RoleViewer, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.ValidateToken(token)
	if err != auth.ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateToken_Malformed_Rejected(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ValidateToken("not-a-real-token")
	if err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	svc := newTestService(t)

	refresh, err := svc.GenerateRefreshToken("user-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID, err := svc.ValidateRefreshToken(refresh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("expected user-42, got %q", userID)
	}
}

func TestRole_HasPermission(t *testing.T) {
	cases := []struct {
		role     auth.Role
		required auth.Role
		want     bool
	}{
		{auth.RoleAdmin, auth.RoleViewer, true},
		{auth.RoleAdmin, auth.RoleAdmin, true},
		{auth.RoleViewer, auth.RoleAdmin, false},
		{auth.RoleOperator, auth.RoleViewer, true},
		{auth.RoleViewer, auth.RoleOperator, false},
	}
	for _, c := range cases {
		if got := c.role.HasPermission(c.required); got != c.want {
			t.Errorf("%s.HasPermission(%s) = %v, want %v", c.role, c.required, got, c.want)
		}
	}
}
