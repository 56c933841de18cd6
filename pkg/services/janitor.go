package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"uninotes/pkg/auth"
	"uninotes/pkg/events"
	"uninotes/pkg/metrics"
	"uninotes/pkg/storage"
)

// SessionCache is the part of auth.Manager the janitor needs.
type SessionCache interface {
	Invalidate(namespace string)
}

// Janitor periodically drops idle browser namespaces and signs out sessions
// whose token has expired.
type Janitor struct {
	cron    *cron.Cron
	storage storage.Store
	cache   SessionCache
	bus     *events.Bus
	idleTTL time.Duration
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewJanitor(st storage.Store, cache SessionCache, bus *events.Bus, idleTTL time.Duration, log logrus.FieldLogger) *Janitor {
	return &Janitor{
		cron:    cron.New(),
		storage: st,
		cache:   cache,
		bus:     bus,
		idleTTL: idleTTL,
		log:     log.WithField("component", "janitor"),
		now:     time.Now,
	}
}

// Schedule registers the sweep to run every interval.
func (j *Janitor) Schedule(interval time.Duration) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			j.log.WithError(err).Error("sweep failed")
		}
	})
}

func (j *Janitor) Start() {
	j.cron.Start()
}

func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Purged    int
	LoggedOut int
}

// Sweep runs one pass over every namespace.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	namespaces, err := j.storage.Namespaces(ctx)
	if err != nil {
		metrics.JanitorRuns.WithLabelValues("error").Inc()
		return res, fmt.Errorf("list namespaces: %w", err)
	}

	now := j.now()
	for _, ns := range namespaces {
		if j.idleTTL > 0 && now.Sub(ns.UpdatedAt) > j.idleTTL {
			if err := j.storage.Purge(ctx, ns.Name); err != nil {
				j.log.WithError(err).WithField("namespace", ns.Name).Warn("failed to purge idle namespace")
				continue
			}
			j.changed(ns.Name)
			res.Purged++
			continue
		}

		sess, err := auth.Open(ctx, j.storage, ns.Name)
		if err != nil {
			j.log.WithError(err).WithField("namespace", ns.Name).Warn("failed to open session")
			continue
		}
		if !sess.Expired(now) {
			continue
		}
		if err := sess.Logout(ctx); err != nil {
			j.log.WithError(err).WithField("namespace", ns.Name).Warn("failed to sign out expired session")
			continue
		}
		j.changed(ns.Name)
		res.LoggedOut++
	}

	metrics.JanitorRuns.WithLabelValues("ok").Inc()
	j.log.WithFields(logrus.Fields{
		"namespaces": len(namespaces),
		"purged":     res.Purged,
		"logged_out": res.LoggedOut,
	}).Info("sweep finished")
	return res, nil
}

func (j *Janitor) changed(namespace string) {
	if j.cache != nil {
		j.cache.Invalidate(namespace)
	}
	if j.bus != nil {
		j.bus.Publish(events.Event{Type: events.SessionChanged, Namespace: namespace})
	}
}
