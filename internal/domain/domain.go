package domain

import (
	"strings"
	"time"
)

// Group is a named collection of users competing together.
// InviteCode is unique across all groups and never changes.
type Group struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	InviteCode string `json:"inviteCode"`
}

// User is a member of exactly one group. Username is unique only within the group.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	GroupID  int64  `json:"groupId"`
	Points   int64  `json:"points"`
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts any letter case and returns the normalized value.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	default:
		return "", false
	}
}

type Icon string

const (
	IconSwimmer  Icon = "swimmer"
	IconHiking   Icon = "hiking"
	IconIceCream Icon = "ice-cream"
	IconCamera   Icon = "camera"
	IconMusic    Icon = "music"
	IconStar     Icon = "star"
)

var icons = map[Icon]struct{}{
	IconSwimmer:  {},
	IconHiking:   {},
	IconIceCream: {},
	IconCamera:   {},
	IconMusic:    {},
	IconStar:     {},
}

func (i Icon) Valid() bool {
	_, ok := icons[i]
	return ok
}

const (
	MinChallengePoints = 1
	MaxChallengePoints = 1000
)

// Challenge is a task worth a fixed number of points, scoped to one group.
type Challenge struct {
	ID          int64      `json:"id"`
	GroupID     int64      `json:"groupId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Points      int64      `json:"points"`
	Difficulty  Difficulty `json:"difficulty"`
	Icon        Icon       `json:"icon"`
}

// Completion records that a user finished a challenge. There is at most one per (user, challenge) pair.
type Completion struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	ChallengeID int64     `json:"challengeId"`
	CompletedAt time.Time `json:"completedAt"`
}

// ChallengeView is a challenge annotated for the requesting user.
type ChallengeView struct {
	Challenge
	IsCompleted    bool `json:"isCompleted"`
	CompletedCount int  `json:"completedCount"`
}

// Stats summarizes a group.
type Stats struct {
	TotalChallenges int   `json:"totalChallenges"`
	ActiveMembers   int   `json:"activeMembers"`
	CompletedToday  int   `json:"completedToday"`
	AverageScore    int64 `json:"averageScore"`
	GroupScore      int64 `json:"groupScore"`
}

// Leaderboard lists the members of a group.
// Entries are sorted by points in descending order, ties keep join order.
type Leaderboard struct {
	GroupID int64
	Entries []User
}

// Session is the identity bound to an authenticated request.
type Session struct {
	ID      string `json:"-"`
	UserID  int64  `json:"userId"`
	GroupID int64  `json:"groupId"`
}
