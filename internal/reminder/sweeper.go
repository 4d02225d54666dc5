package reminder

import (
	"context"
	"time"

	"fitcoach/internal/logger"
	"fitcoach/internal/metrics"
	"fitcoach/internal/notify"
	"fitcoach/internal/session"
)

const (
	sweepInterval = 15 * time.Minute

	// A reminder fires inside this window before the session starts. The
	// lower bound keeps last-minute bookings from getting a reminder that
	// arrives after the session.
	minLeadTime = 30 * time.Minute
	maxLeadTime = 24 * time.Hour
)

// Sweeper periodically scans for upcoming sessions whose reminder has not
// gone out yet and dispatches one per session.
type Sweeper struct {
	repo          session.Repository
	notifyService *notify.Service
}

func NewSweeper(repo session.Repository, notifyService *notify.Service) *Sweeper {
	return &Sweeper{
		repo:          repo,
		notifyService: notifyService,
	}
}

// Start blocks until ctx is cancelled, sweeping at a fixed interval.
func (s *Sweeper) Start(ctx context.Context) {
	logger.Info("Reminder sweeper started", "interval", sweepInterval)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Reminder sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				logger.Error("Reminder sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep and returns how many reminders went out.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := time.Now()

	due, err := s.repo.ListDueReminders(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, d := range due {
		startsAt, err := sessionStart(d)
		if err != nil {
			logger.Error("Skipping reminder with bad schedule",
				"session_id", d.SessionID,
				"error", err,
			)
			continue
		}

		lead := startsAt.Sub(now)
		if lead < minLeadTime || lead > maxLeadTime {
			continue
		}

		err = s.notifyService.SendReminder(ctx, d.UserEmail, d.UserPhone, d.UserName,
			string(d.SessionType), startsAt, d.MeetingLink)
		if err != nil {
			logger.Error("Failed to queue reminder",
				"session_id", d.SessionID,
				"error", err,
			)
			continue
		}

		if err := s.repo.MarkReminderSent(ctx, d.SessionID); err != nil {
			logger.Error("Failed to mark reminder as sent",
				"session_id", d.SessionID,
				"error", err,
			)
			continue
		}

		metrics.RecordReminderSent()
		sent++
	}

	if sent > 0 {
		logger.Info("Reminder sweep complete", "sent", sent)
	}

	return sent, nil
}

// sessionStart combines the date column with the time-of-day column in the
// server's local zone.
func sessionStart(d session.DueReminder) (time.Time, error) {
	t, err := time.Parse("15:04:05", d.ScheduledTime)
	if err != nil {
		return time.Time{}, err
	}

	return time.Date(
		d.SessionDate.Year(), d.SessionDate.Month(), d.SessionDate.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, time.Local,
	), nil
}
