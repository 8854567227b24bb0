package main

import (
	"context"
	"time"

	"github.com/pingcap/errors"
	"go.uber.org/zap"

	"github.com/theadell/soccergame/internal/soccer"
)

const announceTimeout = 10 * time.Second

// announcer posts the match report of a completed run.
type announcer struct {
	apiClient SlackClient
	channel   string
	logger    *zap.Logger
}

func newAnnouncer(apiClient SlackClient, channel string, logger *zap.Logger) *announcer {
	return &announcer{apiClient: apiClient, channel: channel, logger: logger}
}

func (a *announcer) Announce(ctx context.Context, final soccer.Snapshot, leaders map[int]string) error {
	ctx, cancel := context.WithTimeout(ctx, announceTimeout)
	defer cancel()
	_, ts, err := a.apiClient.PostMessageContext(ctx, a.channel, MatchReportMsg(final, leaders))
	if err != nil {
		a.logger.Error("failed to post match report", zap.String("channel", a.channel), zap.Error(err))
		return errors.Annotatef(err, "post match report to %s", a.channel)
	}
	a.logger.Info("match report posted", zap.String("channel", a.channel), zap.String("ts", ts))
	return nil
}

// leaderTracker remembers which actor formed each team as snapshots go by.
type leaderTracker struct {
	next    soccer.Recorder
	leaders map[int]string
}

var _ soccer.Recorder = (*leaderTracker)(nil)

func newLeaderTracker(next soccer.Recorder) *leaderTracker {
	return &leaderTracker{next: next, leaders: make(map[int]string, soccer.NumTeams)}
}

// Save is called with the world's mutex held, so no locking is needed here.
func (t *leaderTracker) Save(s soccer.Snapshot) error {
	for _, r := range []soccer.Role{soccer.RolePlayer, soccer.RoleGoalie} {
		for id, slot := range s.Slots(r) {
			if slot.State == soccer.FormingTeam {
				if _, ok := t.leaders[slot.Team]; !ok {
					t.leaders[slot.Team] = actorName(r, id)
				}
			}
		}
	}
	return t.next.Save(s)
}

// Leaders must only be read after the run has finished.
func (t *leaderTracker) Leaders() map[int]string {
	return t.leaders
}
