package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/groupquest/internal/errors"
	"github.com/victornm/groupquest/internal/session"
	"github.com/victornm/groupquest/internal/store"
)

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	s, st, _ := makeService(t)

	g, err := st.CreateGroup("Beach Week")
	require.NoError(t, err)

	first, err := s.Login(ctx, session.LoginRequest{Username: "alice", Password: "x", GroupCode: g.InviteCode})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.User.ID)
	assert.Equal(t, int64(0), first.User.Points)
	assert.Equal(t, g, first.Group)
	assert.Equal(t, first.User.ID, first.Session.UserID)
	assert.Equal(t, g.ID, first.Session.GroupID)
	assert.NotEmpty(t, first.Session.ID)

	second, err := s.Login(ctx, session.LoginRequest{Username: "alice", Password: "other", GroupCode: g.InviteCode})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID, "joining twice should return the same user")
	assert.NotEqual(t, first.Session.ID, second.Session.ID)
	assert.Len(t, st.GetUsersByGroup(g.ID), 1)
}

func TestService_Login_Errors(t *testing.T) {
	tests := map[string]struct {
		req  session.LoginRequest
		want error
	}{
		"unknown group code": {
			req:  session.LoginRequest{Username: "alice", Password: "x", GroupCode: "NOPE00"},
			want: errors.ErrInvalidGroupCode,
		},
		"missing username": {
			req:  session.LoginRequest{Username: " ", Password: "x", GroupCode: "NOPE00"},
			want: errors.ErrValidation,
		},
		"missing password": {
			req:  session.LoginRequest{Username: "alice", GroupCode: "NOPE00"},
			want: errors.ErrValidation,
		},
		"missing group code": {
			req:  session.LoginRequest{Username: "alice", Password: "x"},
			want: errors.ErrValidation,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, st, _ := makeService(t)
			g, err := st.CreateGroup("g")
			require.NoError(t, err)

			_, err = s.Login(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, st.GetUsersByGroup(g.ID), "no user should be created")
		})
	}
}

func TestService_MeAndLogout(t *testing.T) {
	ctx := context.Background()
	s, st, _ := makeService(t)

	g, _ := st.CreateGroup("g")
	resp, err := s.Login(ctx, session.LoginRequest{Username: "bob", Password: "x", GroupCode: g.InviteCode})
	require.NoError(t, err)

	me, err := s.Me(ctx, resp.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.User, me.User)
	assert.Equal(t, g, me.Group)

	require.NoError(t, s.Logout(ctx, resp.Session.ID))
	_, err = s.Me(ctx, resp.Session.ID)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)

	require.NoError(t, s.Logout(ctx, ""), "logout always succeeds")
	require.NoError(t, s.Logout(ctx, "unknown"))

	_, err = s.Me(ctx, "")
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func TestService_Resolve_SessionOfAnotherStore(t *testing.T) {
	ctx := context.Background()

	// Another store stands for the process before a restart; ids overlap with ours.
	other := store.New()
	og, _ := other.CreateGroup("before restart")
	s, st, mr := makeService(t)
	g, _ := st.CreateGroup("after restart")
	st.CreateUser("bob", g.ID)

	otherSvc := session.NewService(session.Config{
		Store:  other,
		Redis:  redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}}),
		Prefix: "test",
	})
	resp, err := otherSvc.Login(ctx, session.LoginRequest{Username: "carol", Password: "x", GroupCode: og.InviteCode})
	require.NoError(t, err)
	require.Equal(t, int64(1), resp.User.ID)

	_, err = s.Resolve(ctx, resp.Session.ID)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)

	_, err = s.Me(ctx, resp.Session.ID)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated, "should not resolve to bob")
}

func TestService_Resolve_DanglingSession(t *testing.T) {
	ctx := context.Background()
	s, st, mr := makeService(t)
	g, _ := st.CreateGroup("g")

	tests := map[string]string{
		"unknown user":          fmt.Sprintf(`{"instance":%q,"userId":99,"groupId":%d}`, st.InstanceID(), g.ID),
		"unknown group":         fmt.Sprintf(`{"instance":%q,"userId":1,"groupId":99}`, st.InstanceID()),
		"user of another group": fmt.Sprintf(`{"instance":%q,"userId":1,"groupId":%d}`, st.InstanceID(), g.ID),
	}

	other, _ := st.CreateGroup("other")
	st.CreateUser("eve", other.ID)

	for name, payload := range tests {
		require.NoError(t, mr.Set("test:session:"+name, payload))

		_, err := s.Resolve(ctx, name)
		assert.ErrorIs(t, err, errors.ErrUnauthenticated, name)

		_, err = s.Me(ctx, name)
		assert.ErrorIs(t, err, errors.ErrUnauthenticated, name)
	}
}

func TestService_Login_ConcurrentFirstJoin(t *testing.T) {
	ctx := context.Background()
	s, st, _ := makeService(t)
	g, _ := st.CreateGroup("g")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]struct{})
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.Login(ctx, session.LoginRequest{Username: "alice", Password: "x", GroupCode: g.InviteCode})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[resp.User.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1, "every login should resolve to the same user")
	assert.Len(t, st.GetUsersByGroup(g.ID), 1)
}

func TestService_SessionExpiresAfterInactivity(t *testing.T) {
	ctx := context.Background()
	s, st, mr := makeService(t)

	g, _ := st.CreateGroup("g")
	resp, err := s.Login(ctx, session.LoginRequest{Username: "dave", Password: "x", GroupCode: g.InviteCode})
	require.NoError(t, err)

	mr.FastForward(50 * time.Minute)
	_, err = s.Resolve(ctx, resp.Session.ID)
	require.NoError(t, err, "session should still be active")

	mr.FastForward(50 * time.Minute)
	_, err = s.Resolve(ctx, resp.Session.ID)
	require.NoError(t, err, "activity should have extended the session")

	mr.FastForward(61 * time.Minute)
	_, err = s.Resolve(ctx, resp.Session.ID)
	assert.ErrorIs(t, err, errors.ErrUnauthenticated)
}

func makeService(t *testing.T) (*session.Service, *store.Store, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	st := store.New()
	s := session.NewService(session.Config{
		Store:  st,
		Redis:  rc,
		Prefix: "test",
		TTL:    time.Hour,
	})

	return s, st, mr
}
