// Package statelog writes and reads the log of world snapshots.
//
// The log starts with two comment lines: the population constants as
// key=value pairs and a column legend. Every other line is one snapshot:
//
//	SEQ REF P00 .. Pnn G00 .. Gnn PF GF TID
//
// Player and goalie cells are a state code followed by the team digit, or '-'
// when the actor has no team.
package statelog

import (
	"fmt"
	"io"
	"strings"

	"github.com/pingcap/errors"

	"github.com/theadell/soccergame/internal/soccer"
)

const headerTag = "soccergame"

// Writer appends snapshots to w. It is not safe for concurrent use; the world
// serializes calls to Save under its mutex.
type Writer struct {
	w   io.Writer
	cfg soccer.Config
	seq int
	buf strings.Builder
}

var _ soccer.Recorder = (*Writer)(nil)

// NewWriter writes the header for cfg and returns a writer for its snapshots.
func NewWriter(w io.Writer, cfg soccer.Config) (*Writer, error) {
	l := &Writer{w: w, cfg: cfg}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s players=%d goalies=%d players-per-team=%d goalies-per-team=%d teams=%d\n",
		headerTag, cfg.Players, cfg.Goalies, cfg.PlayersPerTeam, cfg.GoaliesPerTeam, soccer.NumTeams)
	b.WriteString("# SEQ   REF ")
	for i := 0; i < cfg.Players; i++ {
		fmt.Fprintf(&b, " P%02d  ", i)
	}
	for i := 0; i < cfg.Goalies; i++ {
		fmt.Fprintf(&b, " G%02d  ", i)
	}
	b.WriteString(" PF GF TID\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return nil, errors.Annotate(err, "write state log header")
	}
	return l, nil
}

// Save appends one record with a single Write call.
func (l *Writer) Save(s soccer.Snapshot) error {
	if len(s.Players) != l.cfg.Players || len(s.Goalies) != l.cfg.Goalies {
		return errors.Errorf("snapshot has %d players and %d goalies, log expects %d and %d",
			len(s.Players), len(s.Goalies), l.cfg.Players, l.cfg.Goalies)
	}
	b := &l.buf
	b.Reset()
	fmt.Fprintf(b, "%05d %s", l.seq, s.Referee.Code())
	for _, slot := range s.Players {
		b.WriteByte(' ')
		b.WriteString(formatSlot(slot))
	}
	for _, slot := range s.Goalies {
		b.WriteByte(' ')
		b.WriteString(formatSlot(slot))
	}
	fmt.Fprintf(b, " %2d %2d %d\n", s.PlayersFree, s.GoaliesFree, s.NextTeamID)
	if _, err := io.WriteString(l.w, b.String()); err != nil {
		return errors.Annotatef(err, "write state record %d", l.seq)
	}
	l.seq++
	return nil
}

func formatSlot(s soccer.Slot) string {
	if s.Team <= 0 || s.Team > 9 {
		return s.State.Code() + "-"
	}
	return fmt.Sprintf("%s%d", s.State.Code(), s.Team)
}
