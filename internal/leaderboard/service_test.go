package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/groupquest/internal/domain"
	"github.com/victornm/groupquest/internal/event"
	"github.com/victornm/groupquest/internal/leaderboard"
	"github.com/victornm/groupquest/internal/store"
)

func TestService_GetLeaderboard(t *testing.T) {
	st := store.New()
	g, _ := st.CreateGroup("g")

	var users []domain.User
	for i, p := range []int64{30, 10, 30} {
		u := st.CreateUser(string(rune('a'+i)), g.ID)
		u, err := st.UpdateUserPoints(u.ID, p)
		require.NoError(t, err)
		users = append(users, u)
	}
	st.CreateUser("outsider", g.ID+1)

	s := makeService(t, withStore(st))

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{GroupID: g.ID})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		GroupID: g.ID,
		Entries: []domain.User{users[0], users[2], users[1]},
	}
	require.Equal(t, want, resp)
}

func TestService_GetLeaderboard_Empty(t *testing.T) {
	s := makeService(t)

	resp, err := s.GetLeaderboard(context.Background(), leaderboard.GetLeaderboardRequest{GroupID: 7})
	require.NoError(t, err)
	require.Empty(t, resp.Entries)
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	type (
		received struct {
			event domain.EventChallengeCompleted
			// before mutates the store the way the completion did.
			before func(st *store.Store)
		}

		inputs struct {
			receivedEvents []received
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	completed := func(groupID, userID int64) domain.EventChallengeCompleted {
		return domain.EventChallengeCompleted{
			Completion: domain.Completion{UserID: userID, ChallengeID: 1, CompletedAt: time.Now()},
			GroupID:    groupID,
		}
	}

	award := func(userID, points int64) func(st *store.Store) {
		return func(st *store.Store) {
			_, err := st.AddUserPoints(userID, points)
			require.NoError(t, err)
		}
	}

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish leaderboard.updated after receiving challenge.completed": {
			arrange: func() inputs {
				return inputs{receivedEvents: []received{{event: completed(1, 1)}}}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				l := out.publishedEvents[0].Leaderboard
				require.Equal(t, int64(1), l.GroupID)
				require.Len(t, l.Entries, 2)
				require.Equal(t, "u1", l.Entries[0].Username, "user with more points should come first")
			},
		},

		"should publish 2 events for completions in 2 different groups": {
			arrange: func() inputs {
				return inputs{receivedEvents: []received{{event: completed(1, 1)}, {event: completed(2, 3)}}}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated events")
			},
		},

		"should publish the final state when the publish interval of a burst ends": {
			arrange: func() inputs {
				return inputs{receivedEvents: []received{
					{event: completed(1, 1)},
					{event: completed(1, 2), before: award(2, 30)},
				}}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should publish once immediately and once at the end of the interval")
				last := out.publishedEvents[1].Leaderboard
				require.Equal(t, "u2", last.Entries[0].Username)
				require.Equal(t, int64(30), last.Entries[0].Points)
			},
		},

		"should publish once at the end of the interval for many completions within it": {
			arrange: func() inputs {
				return inputs{receivedEvents: []received{
					{event: completed(1, 1)},
					{event: completed(1, 2), before: award(2, 5)},
					{event: completed(1, 2), before: award(2, 5)},
					{event: completed(1, 1), before: award(1, 5)},
				}}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "the burst should be published once more in total")
				last := out.publishedEvents[1].Leaderboard
				require.Equal(t, "u1", last.Entries[0].Username)
				require.Equal(t, int64(15), last.Entries[0].Points)
				require.Equal(t, int64(10), last.Entries[1].Points)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			st := store.New()
			g1, _ := st.CreateGroup("g1")
			g2, _ := st.CreateGroup("g2")
			u1 := st.CreateUser("u1", g1.ID)
			st.CreateUser("u2", g1.ID)
			st.CreateUser("u3", g2.ID)
			_, err := st.AddUserPoints(u1.ID, 10)
			require.NoError(t, err)

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s := makeService(t,
				withEventBus(eb),
				withStore(st),
			)

			// Completions are handled concurrently, as the event bus does.
			var wg sync.WaitGroup
			for _, r := range in.receivedEvents {
				if r.before != nil {
					r.before(st)
				}

				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.UpdateLeaderboard(context.Background(), r.event))
				}()
				time.Sleep(5 * time.Millisecond)
			}
			wg.Wait()

			eb.Stop()

			mu.Lock()
			defer mu.Unlock()
			tt.assert(t, out)
		})
	}
}

func TestService_SubscribesToChallengeCompleted(t *testing.T) {
	st := store.New()
	g, _ := st.CreateGroup("g")
	st.CreateUser("u1", g.ID)

	eb := event.NewBus()
	published := make(chan domain.EventLeaderboardUpdated, 1)
	eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		published <- e.(domain.EventLeaderboardUpdated)
		return nil
	})

	makeService(t, withEventBus(eb), withStore(st))

	eb.Publish(context.Background(), domain.EventChallengeCompleted{GroupID: g.ID})
	eb.Stop()

	select {
	case e := <-published:
		require.Equal(t, g.ID, e.Leaderboard.GroupID)
	default:
		t.Fatal("leaderboard.updated was not published")
	}
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus:        event.NewBus(),
		Store:           store.New(),
		Redis:           rc,
		Prefix:          "test",
		PublishInterval: 50 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c)
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}

func withStore(st *store.Store) options {
	return func(c *leaderboard.Config) {
		c.Store = st
	}
}
