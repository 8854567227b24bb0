package main

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/theadell/soccergame/internal/soccer"
)

// lineup is who ended the run in one team.
type lineup struct {
	team    int
	leader  string
	players []string
	goalies []string
}

func actorName(r soccer.Role, id int) string {
	if r == soccer.RoleGoalie {
		return fmt.Sprintf("Torwart %d", id)
	}
	return fmt.Sprintf("Spieler %d", id)
}

// lineups reads the teams out of the final snapshot. leaders maps a team to
// the actor that formed it, when known.
func lineups(final soccer.Snapshot, leaders map[int]string) []lineup {
	out := make([]lineup, soccer.NumTeams)
	for i := range out {
		out[i].team = i + 1
		out[i].leader = leaders[i+1]
	}
	for _, r := range []soccer.Role{soccer.RolePlayer, soccer.RoleGoalie} {
		for id, slot := range final.Slots(r) {
			if slot.Team < 1 || slot.Team > soccer.NumTeams {
				continue
			}
			l := &out[slot.Team-1]
			if r == soccer.RoleGoalie {
				l.goalies = append(l.goalies, actorName(r, id))
			} else {
				l.players = append(l.players, actorName(r, id))
			}
		}
	}
	return out
}

func lateArrivals(final soccer.Snapshot) []string {
	var late []string
	for _, r := range []soccer.Role{soccer.RolePlayer, soccer.RoleGoalie} {
		for id, slot := range final.Slots(r) {
			if slot.State == soccer.Late {
				late = append(late, actorName(r, id))
			}
		}
	}
	return late
}

func matchReportBlocks(final soccer.Snapshot, leaders map[int]string) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", "Abpfiff! Das Spiel ist vorbei.", false, false)),
	}
	for _, l := range lineups(final, leaders) {
		text := fmt.Sprintf("*Team %d*\nTor: %s\nFeld: %s", l.team,
			strings.Join(l.goalies, ", "), strings.Join(l.players, ", "))
		if l.leader != "" {
			text += fmt.Sprintf("\nAufgestellt von %s", l.leader)
		}
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", text, false, false), nil, nil))
	}
	blocks = append(blocks, slack.NewDividerBlock())

	late := lateArrivals(final)
	text := "Alle waren pünktlich."
	if len(late) > 0 {
		text = fmt.Sprintf("Zu spät: %s", strings.Join(late, ", "))
	}
	blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject("mrkdwn", text, false, false)))
	return blocks
}

func MatchReportMsg(final soccer.Snapshot, leaders map[int]string) slack.MsgOption {
	return slack.MsgOptionBlocks(matchReportBlocks(final, leaders)...)
}
