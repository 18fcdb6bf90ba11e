package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// FeedResult counts what happened to one feed in a pass.
type FeedResult struct {
	Discovered     int
	Skipped        int
	Downloaded     int
	Uploaded       int
	AlreadyExisted int
	EpisodeErrors  int
	Deleted        int
}

// Summary is the outcome of one pass.
type Summary struct {
	RunID       string
	RunType     string
	Feeds       int
	FeedErrors  int
	FailedFeeds []string
	FeedResult
	Duration time.Duration
}

func (s *Summary) add(r FeedResult) {
	s.Discovered += r.Discovered
	s.Skipped += r.Skipped
	s.Downloaded += r.Downloaded
	s.Uploaded += r.Uploaded
	s.AlreadyExisted += r.AlreadyExisted
	s.EpisodeErrors += r.EpisodeErrors
	s.Deleted += r.Deleted
}

// OK reports whether every feed and episode was processed without error.
func (s Summary) OK() bool {
	return s.FeedErrors == 0 && s.EpisodeErrors == 0
}

func (s Summary) String() string {
	msg := fmt.Sprintf("Processed %d podcasts: %d new, %d downloaded, %d uploaded, %d already present, %d deleted, %d episode errors, %d feed errors",
		s.Feeds, s.Discovered, s.Downloaded, s.Uploaded, s.AlreadyExisted, s.Deleted, s.EpisodeErrors, s.FeedErrors)
	if len(s.FailedFeeds) > 0 {
		msg += " (failed: " + strings.Join(s.FailedFeeds, ", ") + ")"
	}
	return msg
}
