package notify

import (
	"context"
	"fmt"
	"time"
)

// SendBookingConfirmation queues a confirmation over email, plus WhatsApp
// when a phone number is on file.
func (s *Service) SendBookingConfirmation(ctx context.Context, email string, phone *string, name string, count int, first time.Time) error {
	subject := "Sessions Booked"
	body := fmt.Sprintf(`Hi %s,

Your booking is confirmed!

Sessions booked: %d
First session: %s

See you soon!

- FitCoach Team`, name, count, first.Format("Jan 2, 2006 at 3:04 PM"))

	return s.sendBoth(ctx, email, phone, name, subject, body)
}

func (s *Service) SendReminder(ctx context.Context, email string, phone *string, name, sessionType string, when time.Time, meetingLink *string) error {
	link := ""
	if meetingLink != nil {
		link = "\nJoin: " + *meetingLink
	}

	subject := "Reminder: Upcoming Session"
	body := fmt.Sprintf(`Hi %s,

This is a reminder about your upcoming session:

Type: %s
Time: %s%s

See you soon!

- FitCoach Team`, name, sessionType, when.Format("Jan 2, 2006 at 3:04 PM"), link)

	return s.sendBoth(ctx, email, phone, name, subject, body)
}

func (s *Service) SendCancellation(ctx context.Context, email string, phone *string, name string, date time.Time) error {
	subject := "Session Cancelled"
	body := fmt.Sprintf(`Hi %s,

Your session on %s has been cancelled.

- FitCoach Team`, name, date.Format("Jan 2, 2006"))

	return s.sendBoth(ctx, email, phone, name, subject, body)
}

func (s *Service) sendBoth(ctx context.Context, email string, phone *string, name, subject, body string) error {
	err := s.Enqueue(ctx, Job{
		Channel: ChannelEmail,
		To:      email,
		Name:    name,
		Subject: subject,
		Body:    body,
	})

	if phone != nil && *phone != "" {
		if werr := s.Enqueue(ctx, Job{
			Channel: ChannelWhatsApp,
			To:      *phone,
			Name:    name,
			Subject: subject,
			Body:    body,
		}); werr != nil && err == nil {
			err = werr
		}
	}

	return err
}
