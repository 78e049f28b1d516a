// Package store holds the authoritative in-memory records of groups, users,
// challenges and completions.
//
// Identifiers are assigned from one counter per entity type, starting at 1.
// They are never reused. Filters return records in creation order.
package store

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/groupquest/internal/domain"
	"github.com/victornm/groupquest/internal/errors"
)

type Option func(s *Store)

// WithInviteCodeFunc replaces the invite code generator.
func WithInviteCodeFunc(f func() (string, error)) Option {
	return func(s *Store) {
		s.newInviteCode = f
	}
}

// WithClock replaces the clock used to stamp completions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

type completionKey struct {
	userID      int64
	challengeID int64
}

type Store struct {
	instanceID string

	mu sync.RWMutex

	groups      map[int64]domain.Group
	users       map[int64]domain.User
	challenges  map[int64]domain.Challenge
	completions map[int64]domain.Completion

	lastGroupID      int64
	lastUserID       int64
	lastChallengeID  int64
	lastCompletionID int64

	// Secondary indices. Slices keep creation order.
	groupByCode            map[string]int64
	usersByGroup           map[int64][]int64
	challengesByGroup      map[int64][]int64
	completionsByUser      map[int64][]int64
	completionsByChallenge map[int64][]int64
	completed              map[completionKey]int64

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	newInviteCode func() (string, error)
	now           func() time.Time
}

func New(opts ...Option) *Store {
	s := &Store{
		instanceID:             uuid.NewString(),
		groups:                 make(map[int64]domain.Group),
		users:                  make(map[int64]domain.User),
		challenges:             make(map[int64]domain.Challenge),
		completions:            make(map[int64]domain.Completion),
		groupByCode:            make(map[string]int64),
		usersByGroup:           make(map[int64][]int64),
		challengesByGroup:      make(map[int64][]int64),
		completionsByUser:      make(map[int64][]int64),
		completionsByChallenge: make(map[int64][]int64),
		completed:              make(map[completionKey]int64),
		locks:                  make(map[int64]*sync.Mutex),
		newInviteCode:          NewInviteCode,
		now:                    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// InstanceID identifies this store. Records referring to ids of another
// instance, e.g. one from before a restart, must not be trusted.
func (s *Store) InstanceID() string {
	return s.instanceID
}

// WithGroupLock runs fn while holding the writer lock of a group.
// Multi-step mutations of one group must go through here so that their
// checks and writes are not interleaved with another request for the same group.
func (s *Store) WithGroupLock(groupID int64, fn func() error) error {
	s.locksMu.Lock()
	l, ok := s.locks[groupID]
	if !ok {
		l = new(sync.Mutex)
		s.locks[groupID] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	defer l.Unlock()

	return fn()
}

// Groups

// CreateGroup creates a group with a fresh invite code, regenerating the code until it is unused.
func (s *Store) CreateGroup(name string) (domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	for {
		c, err := s.newInviteCode()
		if err != nil {
			return domain.Group{}, fmt.Errorf("store: create group: %w", err)
		}

		c = strings.ToUpper(c)
		if _, taken := s.groupByCode[c]; !taken {
			code = c
			break
		}
	}

	s.lastGroupID++
	g := domain.Group{
		ID:         s.lastGroupID,
		Name:       name,
		InviteCode: code,
	}

	s.groups[g.ID] = g
	s.groupByCode[code] = g.ID

	return g, nil
}

func (s *Store) GetGroupByInviteCode(code string) (domain.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.groupByCode[code]
	if !ok {
		return domain.Group{}, false
	}

	g, ok := s.groups[id]
	return g, ok
}

func (s *Store) GetGroupByID(id int64) (domain.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	return g, ok
}

// Users

func (s *Store) CreateUser(username string, groupID int64) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUserID++
	u := domain.User{
		ID:       s.lastUserID,
		Username: username,
		GroupID:  groupID,
	}

	s.users[u.ID] = u
	s.usersByGroup[groupID] = append(s.usersByGroup[groupID], u.ID)

	return u
}

func (s *Store) GetUserByID(id int64) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	return u, ok
}

func (s *Store) GetUserByUsernameAndGroup(username string, groupID int64) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.usersByGroup[groupID] {
		if u := s.users[id]; u.Username == username {
			return u, true
		}
	}

	return domain.User{}, false
}

// UpdateUserPoints replaces the points of a user with total.
func (s *Store) UpdateUserPoints(userID, total int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, errors.NotFound("user not found: id=%d", userID)
	}

	u.Points = total
	s.users[userID] = u

	return u, nil
}

// AddUserPoints atomically adds delta to the points of a user.
func (s *Store) AddUserPoints(userID, delta int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, errors.NotFound("user not found: id=%d", userID)
	}

	u.Points += delta
	s.users[userID] = u

	return u, nil
}

func (s *Store) GetUsersByGroup(groupID int64) []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.usersByGroup[groupID]
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, s.users[id])
	}

	return users
}

// Challenges

// CreateChallenge stores c under a new id. The id of c is ignored.
func (s *Store) CreateChallenge(c domain.Challenge) domain.Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastChallengeID++
	c.ID = s.lastChallengeID

	s.challenges[c.ID] = c
	s.challengesByGroup[c.GroupID] = append(s.challengesByGroup[c.GroupID], c.ID)

	return c
}

func (s *Store) GetChallengesByGroup(groupID int64) []domain.Challenge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.challengesByGroup[groupID]
	challenges := make([]domain.Challenge, 0, len(ids))
	for _, id := range ids {
		challenges = append(challenges, s.challenges[id])
	}

	return challenges
}

func (s *Store) GetChallengeByID(id int64) (domain.Challenge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.challenges[id]
	return c, ok
}

// DeleteChallenge removes a challenge and reports whether it existed.
// Completions of the challenge are kept.
func (s *Store) DeleteChallenge(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return false
	}

	delete(s.challenges, id)
	s.challengesByGroup[c.GroupID] = slices.DeleteFunc(s.challengesByGroup[c.GroupID], func(v int64) bool {
		return v == id
	})

	return true
}

// Completions

// CreateCompletion always records a new completion. Callers check IsUserChallengeCompleted first.
func (s *Store) CreateCompletion(userID, challengeID int64) domain.Completion {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCompletionID++
	c := domain.Completion{
		ID:          s.lastCompletionID,
		UserID:      userID,
		ChallengeID: challengeID,
		CompletedAt: s.now(),
	}

	s.completions[c.ID] = c
	s.completionsByUser[userID] = append(s.completionsByUser[userID], c.ID)
	s.completionsByChallenge[challengeID] = append(s.completionsByChallenge[challengeID], c.ID)
	if _, ok := s.completed[completionKey{userID, challengeID}]; !ok {
		s.completed[completionKey{userID, challengeID}] = c.ID
	}

	return c
}

func (s *Store) GetCompletionsByUser(userID int64) []domain.Completion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectCompletions(s.completionsByUser[userID])
}

func (s *Store) GetCompletionsByChallenge(challengeID int64) []domain.Completion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectCompletions(s.completionsByChallenge[challengeID])
}

// CountCompletionsByChallenge is GetCompletionsByChallenge without the copy.
func (s *Store) CountCompletionsByChallenge(challengeID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.completionsByChallenge[challengeID])
}

func (s *Store) IsUserChallengeCompleted(userID, challengeID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.completed[completionKey{userID, challengeID}]
	return ok
}

func (s *Store) collectCompletions(ids []int64) []domain.Completion {
	completions := make([]domain.Completion, 0, len(ids))
	for _, id := range ids {
		completions = append(completions, s.completions[id])
	}

	return completions
}
