package statelog

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pingcap/errors"

	"github.com/theadell/soccergame/internal/soccer"
)

// Record is one parsed snapshot line.
type Record struct {
	Seq      int
	Snapshot soccer.Snapshot
}

// Log is a parsed state log.
type Log struct {
	Config  soccer.Config
	Records []Record
}

// Last returns the final snapshot, or the initial state of the world when the
// log has no records.
func (l *Log) Last() soccer.Snapshot {
	if len(l.Records) == 0 {
		return soccer.NewSnapshot(l.Config)
	}
	return l.Records[len(l.Records)-1].Snapshot
}

// Read parses a log written by Writer.
func Read(r io.Reader) (*Log, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		l         *Log
		lineNo    int
		gotHeader bool
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if gotHeader {
				continue
			}
			cfg, err := parseHeader(line)
			if err != nil {
				return nil, errors.Annotatef(err, "line %d", lineNo)
			}
			l = &Log{Config: cfg}
			gotHeader = true
			continue
		}
		if !gotHeader {
			return nil, errors.Errorf("line %d: record before header", lineNo)
		}
		rec, err := parseRecord(line, l.Config)
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNo)
		}
		l.Records = append(l.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Annotate(err, "read state log")
	}
	if !gotHeader {
		return nil, errors.New("state log has no header")
	}
	return l, nil
}

func parseHeader(line string) (soccer.Config, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "#"))
	if len(fields) == 0 || fields[0] != headerTag {
		return soccer.Config{}, errors.Errorf("not a %s state log header: %q", headerTag, line)
	}
	values := make(map[string]int, len(fields)-1)
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return soccer.Config{}, errors.Errorf("malformed header field %q", f)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return soccer.Config{}, errors.Annotatef(err, "header field %q", f)
		}
		values[k] = n
	}
	for _, k := range []string{"players", "goalies", "players-per-team", "goalies-per-team", "teams"} {
		if _, ok := values[k]; !ok {
			return soccer.Config{}, errors.Errorf("header lacks %q", k)
		}
	}
	if values["teams"] != soccer.NumTeams {
		return soccer.Config{}, errors.Errorf("log was written for %d teams, want %d", values["teams"], soccer.NumTeams)
	}
	cfg := soccer.Config{
		PlayersPerTeam: values["players-per-team"],
		GoaliesPerTeam: values["goalies-per-team"],
		Players:        values["players"],
		Goalies:        values["goalies"],
	}
	return cfg, errors.Trace(cfg.Validate())
}

func parseRecord(line string, cfg soccer.Config) (Record, error) {
	fields := strings.Fields(line)
	want := 2 + cfg.Players + cfg.Goalies + 3
	if len(fields) != want {
		return Record{}, errors.Errorf("record has %d fields, want %d", len(fields), want)
	}
	var (
		rec Record
		err error
	)
	if rec.Seq, err = strconv.Atoi(fields[0]); err != nil {
		return Record{}, errors.Annotate(err, "sequence number")
	}
	s := soccer.NewSnapshot(cfg)
	if s.Referee, err = soccer.ParseRefereeState(fields[1]); err != nil {
		return Record{}, err
	}
	cells := fields[2:]
	for i := range s.Players {
		if s.Players[i], err = parseSlot(cells[i]); err != nil {
			return Record{}, errors.Annotatef(err, "player %d", i)
		}
	}
	cells = cells[cfg.Players:]
	for i := range s.Goalies {
		if s.Goalies[i], err = parseSlot(cells[i]); err != nil {
			return Record{}, errors.Annotatef(err, "goalie %d", i)
		}
	}
	counters := cells[cfg.Goalies:]
	for i, dst := range []*int{&s.PlayersFree, &s.GoaliesFree, &s.NextTeamID} {
		if *dst, err = strconv.Atoi(counters[i]); err != nil {
			return Record{}, errors.Annotatef(err, "counter %d", i)
		}
	}
	rec.Snapshot = s
	return rec, nil
}

func parseSlot(cell string) (soccer.Slot, error) {
	if len(cell) != 5 {
		return soccer.Slot{}, errors.Errorf("malformed cell %q", cell)
	}
	st, err := soccer.ParseState(cell[:4])
	if err != nil {
		return soccer.Slot{}, err
	}
	slot := soccer.Slot{State: st}
	if c := cell[4]; c != '-' {
		if c < '1' || c > '0'+soccer.NumTeams {
			return soccer.Slot{}, errors.Errorf("malformed team in cell %q", cell)
		}
		slot.Team = int(c - '0')
	}
	return slot, nil
}
