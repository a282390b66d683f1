package handlers

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

func TestGetUserFromContext_WithUser(t *testing.T) {
	user := &models.User{ID: uuid.New(), Phone: "15550100", DisplayName: "Ada"}

	retrieved := GetUserFromContext(SetUserInContext(context.Background(), user))
	if retrieved == nil {
		t.Fatal("expected user to be retrieved from context")
	}
	if retrieved.ID != user.ID || retrieved.Phone != user.Phone {
		t.Errorf("expected %+v, got %+v", user, retrieved)
	}
}

func TestGetUserFromContext_NoUser(t *testing.T) {
	if GetUserFromContext(context.Background()) != nil {
		t.Error("expected nil when no user in context")
	}
}

func TestGetUserFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), userContextKey, "not a user")
	if GetUserFromContext(ctx) != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestContextKey_UniqueType(t *testing.T) {
	ctx := SetUserInContext(context.Background(), &models.User{ID: uuid.New()})
	// Using a string key should not find the user
	if ctx.Value("user") != nil {
		t.Error("string key should not find user (type safety)")
	}
}

func TestSetUserInContext_OverwriteUser(t *testing.T) {
	user1 := &models.User{ID: uuid.New(), Phone: "15550101"}
	user2 := &models.User{ID: uuid.New(), Phone: "15550102"}

	ctx := SetUserInContext(context.Background(), user1)
	ctx = SetUserInContext(ctx, user2)

	retrieved := GetUserFromContext(ctx)
	if retrieved == nil || retrieved.Phone != "15550102" {
		t.Fatalf("expected second user to overwrite first, got %+v", retrieved)
	}
}
