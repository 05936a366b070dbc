package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chxlky/roadmap-tracker/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrUnknownDate is returned when a card without a real creation date is
// published; placeholder dates never reach chronological views.
var ErrUnknownDate = errors.New("card creation date is unknown")

type CalendarClient struct {
	service    *calendar.Service
	calendarID string
}

// NewCalendarClient authenticates with a service account. serviceAccount is
// the decoded key file as read from the configuration.
func NewCalendarClient(ctx context.Context, serviceAccount any, calendarID string) (*CalendarClient, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("google calendar ID is not configured")
	}

	jsonBytes, err := json.Marshal(serviceAccount)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal service account settings to JSON: %w", err)
	}

	// create credentials from JSON data
	config, err := google.JWTConfigFromJSON(jsonBytes, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials from JSON: %w", err)
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	return NewCalendarClientWithService(srv, calendarID), nil
}

// NewCalendarClientWithService wraps an existing calendar service.
func NewCalendarClientWithService(srv *calendar.Service, calendarID string) *CalendarClient {
	return &CalendarClient{service: srv, calendarID: calendarID}
}

// EventForCard builds the all-day event mirroring a card on its creation date.
func EventForCard(card models.Card) (*calendar.Event, error) {
	if !card.DateKnown {
		return nil, ErrUnknownDate
	}
	day := card.CreatedAt.UTC()

	summary := card.Summary
	if card.JiraKey != nil {
		summary = fmt.Sprintf("[%s] %s", *card.JiraKey, card.Summary)
	}
	description := fmt.Sprintf("Projet: %s\nStatut: %s", card.Project, card.Status)
	if card.JiraURL != nil {
		description += "\n" + *card.JiraURL
	}

	return &calendar.Event{
		Summary:     summary,
		Description: description,
		Start: &calendar.EventDateTime{
			Date: day.Format("2006-01-02"),
		},
		End: &calendar.EventDateTime{
			Date: day.AddDate(0, 0, 1).Format("2006-01-02"), // all-day event ends the next day
		},
	}, nil
}

// PublishCard creates the event for card, or updates it when the card
// already has one. The event ID is returned.
func (c *CalendarClient) PublishCard(ctx context.Context, card models.Card) (string, error) {
	event, err := EventForCard(card)
	if err != nil {
		return "", err
	}

	if card.CalendarEventID != "" {
		updated, err := c.service.Events.Update(c.calendarID, card.CalendarEventID, event).Context(ctx).Do()
		if err == nil {
			return updated.Id, nil
		}
		var gerr *googleapi.Error
		if !errors.As(err, &gerr) || gerr.Code != 404 {
			return "", fmt.Errorf("unable to update event in Google Calendar: %w", err)
		}
		zap.L().Info("Calendar event vanished, creating a new one", zap.String("eventID", card.CalendarEventID))
	}

	created, err := c.service.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create event in Google Calendar: %w", err)
	}
	return created.Id, nil
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		// It's possible the event was already deleted, so we can choose to ignore "Not Found" errors
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 404 {
			zap.L().Info("Event not found in Google Calendar. Already deleted.", zap.String("eventID", eventID))
			return nil
		}
		return fmt.Errorf("unable to delete event from Google Calendar: %w", err)
	}

	return nil
}
