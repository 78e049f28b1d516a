package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/victornm/groupquest/internal/domain"
	"github.com/victornm/groupquest/internal/event"
)

// DomainMetrics counts domain events published on the bus.
type DomainMetrics struct {
	GroupsCreated       prometheus.Counter
	ChallengesCreated   prometheus.Counter
	ChallengesDeleted   prometheus.Counter
	ChallengesCompleted prometheus.Counter
	PointsAwarded       prometheus.Counter
}

func NewDomainMetrics(reg prometheus.Registerer, eb *event.Bus) *DomainMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupquest",
			Name:      name,
			Help:      help,
		})
	}

	m := &DomainMetrics{
		GroupsCreated:       counter("groups_created_total", "Number of groups created."),
		ChallengesCreated:   counter("challenges_created_total", "Number of challenges created."),
		ChallengesDeleted:   counter("challenges_deleted_total", "Number of challenges deleted."),
		ChallengesCompleted: counter("challenges_completed_total", "Number of challenge completions."),
		PointsAwarded:       counter("points_awarded_total", "Sum of points awarded by completions."),
	}

	reg.MustRegister(m.GroupsCreated, m.ChallengesCreated, m.ChallengesDeleted, m.ChallengesCompleted, m.PointsAwarded)

	eb.Subscribe(domain.EventNameGroupCreated, func(context.Context, event.Event) error {
		m.GroupsCreated.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameChallengeCreated, func(context.Context, event.Event) error {
		m.ChallengesCreated.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameChallengeDeleted, func(context.Context, event.Event) error {
		m.ChallengesDeleted.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameChallengeCompleted, func(_ context.Context, e event.Event) error {
		m.ChallengesCompleted.Inc()
		m.PointsAwarded.Add(float64(e.(domain.EventChallengeCompleted).PointsAwarded))
		return nil
	})

	return m
}
