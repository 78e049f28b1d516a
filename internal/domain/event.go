package domain

const (
	EventNameGroupCreated       = "group.created"
	EventNameChallengeCreated   = "challenge.created"
	EventNameChallengeDeleted   = "challenge.deleted"
	EventNameChallengeCompleted = "challenge.completed"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventGroupCreated struct {
	Group Group
}

func (EventGroupCreated) Name() string { return EventNameGroupCreated }

type EventChallengeCreated struct {
	Challenge Challenge
}

func (EventChallengeCreated) Name() string { return EventNameChallengeCreated }

type EventChallengeDeleted struct {
	ChallengeID int64
	// GroupID is the group the challenge belonged to, not the group of the deleter.
	GroupID int64
}

func (EventChallengeDeleted) Name() string { return EventNameChallengeDeleted }

type EventChallengeCompleted struct {
	Completion    Completion
	GroupID       int64
	PointsAwarded int64
	TotalPoints   int64
}

func (EventChallengeCompleted) Name() string { return EventNameChallengeCompleted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
