package tester

import (
	"context"
	"fmt"
	"testing"

	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/store"
)

func CreateUser(t testing.TB, s store.Store, name string) *model.User {
	t.Helper()
	user := &model.User{Name: name, Email: fmt.Sprintf("%s@example.com", name)}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func CreateDirectory(t testing.TB, s store.Store, owner uint, parent *model.Directory, name string, cloud bool) *model.Directory {
	t.Helper()
	dir := &model.Directory{OwnerID: owner, Name: name, CloudManaged: cloud}
	if parent != nil {
		dir.ParentID = &parent.ID
	}
	if err := s.CreateDirectory(context.Background(), dir); err != nil {
		t.Fatalf("create directory %s: %v", name, err)
	}
	return dir
}

func CreateDocument(t testing.TB, s store.Store, owner uint, dir *model.Directory, name string) *model.Document {
	t.Helper()
	doc := &model.Document{OwnerID: owner, DisplayName: name, StoragePath: name, MimeType: "application/pdf"}
	if dir != nil {
		doc.DirectoryID = &dir.ID
		doc.StoragePath = dir.Name + "/" + name
	}
	if err := s.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("create document %s: %v", name, err)
	}
	return doc
}

// Share shares root with the member using the given role.
func Share(t testing.TB, s store.Store, owner uint, root *model.Directory, member uint, role model.Role, includeSubtree bool) *model.Share {
	t.Helper()
	ctx := context.Background()

	share := &model.Share{OwnerID: owner, RootDirectoryID: root.ID, Name: root.Name}
	if err := s.CreateShare(ctx, share); err != nil {
		t.Fatalf("create share: %v", err)
	}
	if err := s.CreateShareNode(ctx, &model.ShareNode{ShareID: share.ID, DirectoryID: root.ID, IncludeSubtree: includeSubtree}); err != nil {
		t.Fatalf("create share node: %v", err)
	}
	if member != 0 {
		if err := s.CreateShareUser(ctx, &model.ShareUser{ShareID: share.ID, UserID: member, Role: role, InvitedAt: Epoch}); err != nil {
			t.Fatalf("create share user: %v", err)
		}
	}
	return share
}
