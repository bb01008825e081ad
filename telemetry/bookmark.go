package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkChaseSpike    BookmarkType = "chase_spike"
	BookmarkFleeWave      BookmarkType = "flee_wave"
	BookmarkPirateWipe    BookmarkType = "pirate_wipe"
	BookmarkEconomyStall  BookmarkType = "economy_stall"
	BookmarkQuietFrontier BookmarkType = "quiet_frontier"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	RunID       string       `csv:"run_id"`
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable windows in a run.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	lastOreSold  float64
	stallWindows int
	quietWindows int
	piratesSeen  bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	checks := []func(WindowStats) *Bookmark{
		bd.checkChaseSpike,
		bd.checkFleeWave,
		bd.checkPirateWipe,
		bd.checkEconomyStall,
		bd.checkQuietFrontier,
	}
	for _, check := range checks {
		if b := check(stats); b != nil {
			b.RunID = stats.RunID
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// spike reports whether current is at least twice the rolling mean of field
// and at least floor.
func (bd *BookmarkDetector) spike(current int, field func(WindowStats) int, floor int) (bool, float64) {
	history := bd.getHistory()
	if len(history) < 3 || current < floor {
		return false, 0
	}
	var total int
	for _, h := range history {
		total += field(h)
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return true, 0
	}
	return float64(current) > avg*2, avg
}

func (bd *BookmarkDetector) checkChaseSpike(stats WindowStats) *Bookmark {
	ok, avg := bd.spike(stats.ChasesStarted, func(w WindowStats) int { return w.ChasesStarted }, 5)
	if !ok {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkChaseSpike,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d chases started against an average of %.1f", stats.ChasesStarted, avg),
	}
}

func (bd *BookmarkDetector) checkFleeWave(stats WindowStats) *Bookmark {
	ok, avg := bd.spike(stats.Flees, func(w WindowStats) int { return w.Flees }, 5)
	if !ok {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkFleeWave,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d ships fled against an average of %.1f", stats.Flees, avg),
	}
}

func (bd *BookmarkDetector) checkPirateWipe(stats WindowStats) *Bookmark {
	if stats.Pirates > 0 {
		bd.piratesSeen = true
		return nil
	}
	if !bd.piratesSeen {
		return nil
	}
	bd.piratesSeen = false
	return &Bookmark{
		Type:        BookmarkPirateWipe,
		Tick:        stats.WindowEndTick,
		Description: "No pirates left in any sector",
	}
}

func (bd *BookmarkDetector) checkEconomyStall(stats WindowStats) *Bookmark {
	sold := stats.OreSoldTotal
	defer func() { bd.lastOreSold = sold }()

	if sold > bd.lastOreSold || bd.lastOreSold == 0 {
		bd.stallWindows = 0
		return nil
	}
	bd.stallWindows++
	if bd.stallWindows != 3 { // trigger exactly once per stall
		return nil
	}
	return &Bookmark{
		Type:        BookmarkEconomyStall,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("No ore sold for 3 windows (total %.0f)", sold),
	}
}

func (bd *BookmarkDetector) checkQuietFrontier(stats WindowStats) *Bookmark {
	if stats.Engaging > 0 || stats.ChasesStarted > 0 || stats.Agents == 0 {
		bd.quietWindows = 0
		return nil
	}
	bd.quietWindows++
	if bd.quietWindows != 5 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkQuietFrontier,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("No combat for 5 windows with %d agents active", stats.Agents),
	}
}
