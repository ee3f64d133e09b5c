package reflections

import (
	"context"
	"strings"
	"time"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/utils"
)

// SilentMood is reported when nobody reflected today or no tag matched.
const SilentMood = "Silent"

type MoodReport struct {
	Mood   string         `json:"mood"`
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"reflections"`
}

// CollectiveMood tallies the emotion tags of reflections written on now's UTC
// day. Rows with unreadable timestamps are ignored.
func (s *Service) CollectiveMood(ctx context.Context, now time.Time) (MoodReport, error) {
	all, err := s.All(ctx)
	if err != nil {
		return MoodReport{}, err
	}
	return moodOf(all, now), nil
}

func moodOf(all []models.Reflection, now time.Time) MoodReport {
	day := now.UTC().Format(time.DateOnly)
	report := MoodReport{
		Mood:   SilentMood,
		Date:   day,
		Counts: make(map[string]int, len(Emotions)),
	}
	for _, mood := range Emotions {
		report.Counts[mood] = 0
	}

	for _, r := range all {
		ts, err := utils.ParseTimestamp(r.Timestamp)
		if err != nil || ts.Format(time.DateOnly) != day {
			continue
		}
		report.Total++
		for _, mood := range Emotions {
			if strings.Contains(r.Emotions, mood) {
				report.Counts[mood]++
			}
		}
	}

	best := 0
	for _, mood := range Emotions {
		if report.Counts[mood] > best {
			best = report.Counts[mood]
			report.Mood = mood
		}
	}
	return report
}
