package service

import (
	"context"
	"errors"
	"testing"

	"dchat/internal/domain"
	"dchat/internal/testutil"

	"golang.org/x/crypto/bcrypt"
)

func newAuthService() (*AuthService, *testutil.MockUserRepository, *testutil.MockSessionRepository) {
	userRepo := testutil.NewMockUserRepository()
	sessionRepo := testutil.NewMockSessionRepository()
	return NewAuthService(userRepo, sessionRepo), userRepo, sessionRepo
}

func TestAuthService_Register_Success(t *testing.T) {
	svc, userRepo, _ := newAuthService()

	user, err := svc.Register(context.Background(), "alice", "Alice A", "password123")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if user.ID == "" {
		t.Error("Expected user ID to be set")
	}
	if user.DisplayName != "Alice A" {
		t.Errorf("Expected display name 'Alice A', got %s", user.DisplayName)
	}
	if user.PasswordHash == "password123" {
		t.Error("Expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")); err != nil {
		t.Error("Expected hash to verify against the password")
	}
	if len(userRepo.Users) != 1 {
		t.Errorf("Expected 1 stored user, got %d", len(userRepo.Users))
	}
}

func TestAuthService_Register_DisplayNameDefaultsToUsername(t *testing.T) {
	svc, _, _ := newAuthService()

	user, err := svc.Register(context.Background(), "alice", "", "password123")

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, user.DisplayName, "alice")
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	tests := []struct {
		name        string
		username    string
		displayName string
		password    string
		wantErr     error
	}{
		{"username too short", "ab", "", "password123", domain.ErrInvalidArgument},
		{"username with spaces", "a b c", "", "password123", domain.ErrInvalidArgument},
		{"username with symbols", "alice!", "", "password123", domain.ErrInvalidArgument},
		{"password too short", "alice", "", "short", domain.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.displayName, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "password123")
	testutil.AssertNoError(t, err)

	_, err = svc.Register(ctx, "alice", "", "otherpassword")
	if !errors.Is(err, domain.ErrUsernameExists) {
		t.Errorf("Expected ErrUsernameExists, got: %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, _, sessionRepo := newAuthService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice", "", "password123")
	testutil.AssertNoError(t, err)

	session, user, err := svc.Login(ctx, "alice", "password123")

	testutil.AssertNoError(t, err)
	if session.Token == "" {
		t.Error("Expected a session token")
	}
	if session.UserID != registered.ID {
		t.Errorf("Expected session for user %s, got %s", registered.ID, session.UserID)
	}
	if user.ID != registered.ID {
		t.Error("Expected the logged in user to be returned")
	}
	if len(sessionRepo.Sessions) != 1 {
		t.Errorf("Expected 1 stored session, got %d", len(sessionRepo.Sessions))
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "password123")
	testutil.AssertNoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "wrongpassword")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got: %v", err)
	}
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	svc, _, _ := newAuthService()

	_, _, err := svc.Login(context.Background(), "nobody", "password123")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got: %v", err)
	}
}

func TestAuthService_Logout_DeletesSession(t *testing.T) {
	svc, _, sessionRepo := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "", "password123")
	testutil.AssertNoError(t, err)
	session, _, err := svc.Login(ctx, "alice", "password123")
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, svc.Logout(ctx, session.Token))

	if _, ok := sessionRepo.Sessions[session.Token]; ok {
		t.Error("Expected the session to be deleted")
	}
}

func TestAuthService_ValidateSession(t *testing.T) {
	svc, _, sessionRepo := newAuthService()
	ctx := context.Background()

	sessionRepo.Sessions["tok-live"] = testutil.NewTestSession(testutil.WithToken("tok-live"))
	sessionRepo.Sessions["tok-stale"] = testutil.NewTestSession(testutil.WithToken("tok-stale"), testutil.WithExpired())

	session, err := svc.ValidateSession(ctx, "tok-live")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, session.Token, "tok-live")

	if _, err := svc.ValidateSession(ctx, "tok-stale"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Expected expired session to be rejected, got: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, "tok-missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Expected unknown token to be rejected, got: %v", err)
	}
}

func TestAuthService_ResolveDisplayName(t *testing.T) {
	svc, userRepo, _ := newAuthService()
	ctx := context.Background()

	userRepo.Users["u1"] = testutil.NewTestUser(testutil.WithUserID("u1"), testutil.WithDisplayName("Alice"))
	blank := testutil.NewTestUser(testutil.WithUserID("u2"))
	blank.DisplayName = ""
	userRepo.Users["u2"] = blank

	testutil.AssertEqual(t, svc.ResolveDisplayName(ctx, "u1"), "Alice")
	testutil.AssertEqual(t, svc.ResolveDisplayName(ctx, "u2"), "u2")
	testutil.AssertEqual(t, svc.ResolveDisplayName(ctx, "gone"), "gone")
}

func TestAuthService_DefaultRoom(t *testing.T) {
	svc, userRepo, _ := newAuthService()
	ctx := context.Background()

	userRepo.Users["u1"] = testutil.NewTestUser(testutil.WithUserID("u1"))

	room, err := svc.DefaultRoom(ctx, "u1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, room, "")

	testutil.AssertNoError(t, svc.SetDefaultRoom(ctx, "u1", "general"))

	room, err = svc.DefaultRoom(ctx, "u1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, room, "general")

	if err := svc.SetDefaultRoom(ctx, "gone", "general"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got: %v", err)
	}
}

func TestAuthService_SetDefaultRoom_NoOpWhenUnchanged(t *testing.T) {
	svc, userRepo, _ := newAuthService()
	ctx := context.Background()

	userRepo.Users["u1"] = testutil.NewTestUser(testutil.WithUserID("u1"), testutil.WithDefaultRoom("general"))

	var updates int
	userRepo.UpdateDefaultRoomFunc = func(ctx context.Context, userID, room string) error {
		updates++
		return nil
	}

	testutil.AssertNoError(t, svc.SetDefaultRoom(ctx, "u1", "general"))
	testutil.AssertEqual(t, updates, 0)

	testutil.AssertNoError(t, svc.SetDefaultRoom(ctx, "u1", "random"))
	testutil.AssertEqual(t, updates, 1)
}
