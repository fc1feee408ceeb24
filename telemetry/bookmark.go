package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkNewBest           BookmarkType = "new_best"
	BookmarkMeanBreakthrough  BookmarkType = "mean_breakthrough"
	BookmarkDiversityCollapse BookmarkType = "diversity_collapse"
	BookmarkStagnation        BookmarkType = "stagnation"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType
	Iteration   int
	Description string
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"iteration", b.Iteration,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments of a search.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []GenerationStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	seen          bool
	bestSoFar     float64
	peakDistinct  int // peak distinct genomes since the last collapse
	flatIters     int // consecutive iterations without a new best
	stagnantAfter int
}

// NewBookmarkDetector creates a detector with the given history size.
// Stagnation is reported once the best has not improved for historySize
// iterations.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5
	}
	return &BookmarkDetector{
		history:       make([]GenerationStats, historySize),
		historySize:   historySize,
		stagnantAfter: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats GenerationStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.seen {
		if b := bd.checkNewBest(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkMeanBreakthrough(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkDiversityCollapse(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkStagnation(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	} else {
		bd.seen = true
		bd.bestSoFar = stats.Best
	}

	bd.addToHistory(stats)
	if stats.Distinct > bd.peakDistinct {
		bd.peakDistinct = stats.Distinct
	}
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats GenerationStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []GenerationStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkNewBest(stats GenerationStats) *Bookmark {
	if stats.Best <= bd.bestSoFar {
		bd.flatIters++
		return nil
	}
	old := bd.bestSoFar
	bd.bestSoFar = stats.Best
	bd.flatIters = 0
	return &Bookmark{
		Type:        BookmarkNewBest,
		Iteration:   stats.Iteration,
		Description: fmt.Sprintf("Best fitness improved from %.4f to %.4f", old, stats.Best),
	}
}

func (bd *BookmarkDetector) checkMeanBreakthrough(stats GenerationStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.Mean
	}
	avg := total / float64(len(history))
	if avg <= 0 {
		return nil
	}

	if stats.Mean > avg*1.5 {
		return &Bookmark{
			Type:        BookmarkMeanBreakthrough,
			Iteration:   stats.Iteration,
			Description: fmt.Sprintf("Mean fitness %.4f is %.1fx rolling average (%.4f)", stats.Mean, stats.Mean/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkDiversityCollapse(stats GenerationStats) *Bookmark {
	if bd.peakDistinct < 4 {
		return nil
	}

	drop := 1.0 - float64(stats.Distinct)/float64(bd.peakDistinct)
	if drop > 0.5 {
		// Reset peak after collapse
		oldPeak := bd.peakDistinct
		bd.peakDistinct = stats.Distinct
		return &Bookmark{
			Type:        BookmarkDiversityCollapse,
			Iteration:   stats.Iteration,
			Description: fmt.Sprintf("Distinct genomes fell %.0f%% from peak %d to %d", drop*100, oldPeak, stats.Distinct),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStagnation(stats GenerationStats) *Bookmark {
	// trigger exactly once per plateau
	if bd.flatIters != bd.stagnantAfter {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkStagnation,
		Iteration:   stats.Iteration,
		Description: fmt.Sprintf("Best fitness %.4f unchanged for %d iterations", bd.bestSoFar, bd.flatIters),
	}
}
