package share

import (
	"context"
	"testing"

	"github.com/evolearn/studyhub/internal/cache"
	"github.com/evolearn/studyhub/internal/events"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/permission"
	"github.com/evolearn/studyhub/internal/store"
	"github.com/evolearn/studyhub/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *store.GormStore
	perms   *permission.Resolver
	log     *events.Log
	service *Service
	owner   *model.User
	ben     *model.User
	cid     *model.User
	root    *model.Directory
	child   *model.Directory
}

func newFixture(t *testing.T) *fixture {
	s := tester.Store(t)
	clk := tester.Clock()
	perms := permission.NewResolver(s)
	log := events.NewLog(s, perms, cache.NewMemoryActivity(), clk)

	owner := tester.CreateUser(t, s, "ana")
	root := tester.CreateDirectory(t, s, owner.ID, nil, "biology", false)

	return &fixture{
		store:   s,
		perms:   perms,
		log:     log,
		service: NewService(s, perms, log, clk),
		owner:   owner,
		ben:     tester.CreateUser(t, s, "ben"),
		cid:     tester.CreateUser(t, s, "cid"),
		root:    root,
		child:   tester.CreateDirectory(t, s, owner.ID, root, "cells", false),
	}
}

func (f *fixture) create(t *testing.T) *model.Share {
	t.Helper()
	share, err := f.service.Create(context.Background(), CreateRequest{OwnerID: f.owner.ID, RootDirectoryID: f.root.ID})
	require.NoError(t, err)
	return share
}

func (f *fixture) eventTypes(t *testing.T, shareID uint) []model.EventType {
	t.Helper()
	page, err := f.log.History(context.Background(), f.owner.ID, shareID, 0, 0)
	require.NoError(t, err)
	var types []model.EventType
	for i := len(page.Events) - 1; i >= 0; i-- {
		types = append(types, page.Events[i].EventType)
	}
	return types
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	share := f.create(t)
	ctx := context.Background()

	assert.Equal(t, "biology", share.Name)
	assert.Equal(t, f.root.ID, share.RootDirectoryID)

	root, err := f.store.GetDirectory(ctx, f.root.ID)
	require.NoError(t, err)
	assert.True(t, root.CloudManaged)

	nodes, err := f.store.ListShareNodes(ctx, share.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].IncludeSubtree)

	assert.Equal(t, []model.EventType{model.EventShareCreated}, f.eventTypes(t, share.ID))
}

func TestService_CreateChecksNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, CreateRequest{OwnerID: f.ben.ID, RootDirectoryID: f.root.ID})
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.service.Create(ctx, CreateRequest{OwnerID: f.owner.ID, RootDirectoryID: 999})
	assert.ErrorIs(t, err, ErrDirectoryNotFound)

	other := tester.CreateDirectory(t, f.store, f.owner.ID, nil, "history", false)
	_, err = f.service.Create(ctx, CreateRequest{
		OwnerID:         f.owner.ID,
		RootDirectoryID: f.root.ID,
		Nodes:           []Node{{DirectoryID: f.root.ID}, {DirectoryID: other.ID}},
	})
	assert.ErrorIs(t, err, ErrNodeOutsideShare)

	share, err := f.service.Create(ctx, CreateRequest{
		OwnerID:         f.owner.ID,
		RootDirectoryID: f.root.ID,
		Name:            "Cells only",
		Nodes:           []Node{{DirectoryID: f.child.ID}, {DirectoryID: f.child.ID}},
	})
	require.NoError(t, err)
	nodes, err := f.store.ListShareNodes(ctx, share.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, f.child.ID, nodes[0].DirectoryID)
	assert.False(t, nodes[0].IncludeSubtree)
}

func TestService_Membership(t *testing.T) {
	f := newFixture(t)
	share := f.create(t)
	ctx := context.Background()

	m, err := f.service.AddUser(ctx, AddUserRequest{ActorID: f.owner.ID, ShareID: share.ID, Email: "Ben@Example.com", Role: model.RoleViewer})
	require.NoError(t, err)
	assert.True(t, m.Created)
	assert.Equal(t, f.ben.ID, m.UserID)

	// viewer cannot edit, upgrading applies at once
	ok, err := f.perms.HasPermission(ctx, f.ben.ID, f.root.ID, permission.Edit)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.service.AddUser(ctx, AddUserRequest{ActorID: f.owner.ID, ShareID: share.ID, UserID: f.ben.ID, Role: model.RoleViewer})
	assert.ErrorIs(t, err, ErrAlreadyMember)

	m, err = f.service.AddUser(ctx, AddUserRequest{ActorID: f.owner.ID, ShareID: share.ID, UserID: f.ben.ID, Role: model.RoleEditor})
	require.NoError(t, err)
	assert.False(t, m.Created)

	ok, err = f.perms.HasPermission(ctx, f.ben.ID, f.root.ID, permission.Edit)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, f.service.UpdateRole(ctx, f.owner.ID, share.ID, f.ben.ID, model.RoleEditor), ErrAlreadyMember)
	assert.ErrorIs(t, f.service.UpdateRole(ctx, f.owner.ID, share.ID, f.cid.ID, model.RoleEditor), ErrNotMember)
	require.NoError(t, f.service.UpdateRole(ctx, f.owner.ID, share.ID, f.ben.ID, model.RoleViewer))

	members, err := f.service.ListUsers(ctx, f.ben.ID, share.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "ben", members[0].Name)
	assert.Equal(t, model.RoleViewer, members[0].Role)

	require.NoError(t, f.service.RemoveUser(ctx, f.owner.ID, share.ID, f.ben.ID))
	assert.ErrorIs(t, f.service.RemoveUser(ctx, f.owner.ID, share.ID, f.ben.ID), ErrNotMember)

	ok, err = f.service.CanAccess(ctx, f.ben.ID, share.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []model.EventType{
		model.EventShareCreated,
		model.EventUserAdded,
		model.EventPermissionChanged,
		model.EventPermissionChanged,
		model.EventUserRemoved,
	}, f.eventTypes(t, share.ID))
}

func TestService_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	share := f.create(t)
	ctx := context.Background()

	_, err := f.service.AddUser(ctx, AddUserRequest{ActorID: f.owner.ID, ShareID: share.ID, UserID: f.ben.ID, Role: model.RoleEditor})
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"member adds", func() error {
			_, err := f.service.AddUser(ctx, AddUserRequest{ActorID: f.ben.ID, ShareID: share.ID, UserID: f.cid.ID, Role: model.RoleViewer})
			return err
		}, ErrNotOwner},
		{"member removes", func() error { return f.service.RemoveUser(ctx, f.ben.ID, share.ID, f.ben.ID) }, ErrNotOwner},
		{"self share", func() error {
			_, err := f.service.AddUser(ctx, AddUserRequest{ActorID: f.owner.ID, ShareID: share.ID, UserID: f.owner.ID, Role: model.RoleViewer})
			return err
		}, ErrCannotShareWithSelf},
		{"bad role", func() error { return f.service.UpdateRole(ctx, f.owner.ID, share.ID, f.ben.ID, "admin") }, ErrInvalidRole},
		{"unknown user", func() error {
			_, err := f.service.AddUser(ctx, AddUserRequest{ActorID: f.owner.ID, ShareID: share.ID, Email: "nobody@example.com", Role: model.RoleViewer})
			return err
		}, ErrUserNotFound},
		{"unknown share", func() error { return f.service.RemoveUser(ctx, f.owner.ID, 404, f.ben.ID) }, ErrShareNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}

	_, err = f.service.ListUsers(ctx, f.cid.ID, share.ID)
	assert.ErrorIs(t, err, permission.ErrPermissionDenied)
}
