package decisionlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/roea-ai/botmind/pkg/types"
)

// Files lists the log files under dir, oldest first.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, filepath.Join(dir, name))
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadFile calls fn for every record in one file. fn returning false stops
// the scan.
func ReadFile(path string, fn func(rec types.DecisionRecord) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec types.DecisionRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if !fn(rec) {
			return nil
		}
	}
	return sc.Err()
}

// Replay reads every file under dir in order. An empty bot matches all bots.
func Replay(dir, bot string, fn func(rec types.DecisionRecord) bool) error {
	files, err := Files(dir)
	if err != nil {
		return err
	}
	stopped := false
	for _, path := range files {
		err := ReadFile(path, func(rec types.DecisionRecord) bool {
			if bot != "" && !strings.EqualFold(rec.Bot, bot) {
				return true
			}
			if !fn(rec) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}
	}
	return nil
}

// Summary tallies a replay.
type Summary struct {
	Records   int                `json:"records"`
	Bots      map[string]int     `json:"bots"`
	Modes     map[types.Mode]int `json:"modes"`
	Behaviors map[string]int     `json:"behaviors"`
	Successes int                `json:"successes"`
	Forced    int                `json:"forced"`
}

// Summarize replays dir and tallies the records.
func Summarize(dir, bot string) (*Summary, error) {
	s := &Summary{
		Bots:      make(map[string]int),
		Modes:     make(map[types.Mode]int),
		Behaviors: make(map[string]int),
	}
	err := Replay(dir, bot, func(rec types.DecisionRecord) bool {
		s.Records++
		s.Bots[rec.Bot]++
		s.Modes[rec.Mode]++
		if rec.Behavior != "" {
			s.Behaviors[rec.Behavior]++
		}
		if rec.Success {
			s.Successes++
		}
		if rec.Forced {
			s.Forced++
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
