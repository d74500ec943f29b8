package meetingsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tuition"
)

const GoogleCalendar = "gcal"

type gcalService struct {
	conf    core.GCalConfig
	client  *http.Client
	baseURL string
	logger  core.Logger
}

var _ tuition.MeetingService = (*gcalService)(nil)

func NewGCalService(conf *core.Config, logger core.Logger) *gcalService {
	return &gcalService{
		conf:    conf.GCal,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://www.googleapis.com/calendar/v3",
		logger:  logger,
	}
}

// Schedule creates a calendar event with a Meet conference attached and
// returns the join link.
func (svc *gcalService) Schedule(ctx context.Context, r tuition.MeetingRequest) (tuition.MeetingLink, error) {
	start := time.Now().UTC()
	payload := map[string]interface{}{
		"summary": r.Topic,
		"start":   map[string]string{"dateTime": start.Format(time.RFC3339)},
		"end":     map[string]string{"dateTime": start.Add(time.Duration(r.DurationMins) * time.Minute).Format(time.RFC3339)},
		"conferenceData": map[string]interface{}{
			"createRequest": map[string]interface{}{
				"requestId": url.QueryEscape(r.Topic + start.Format("20060102150405")),
			},
		},
	}

	var body struct {
		ID       string `json:"id"`
		HangoutL string `json:"hangoutLink"`
	}
	path := "/calendars/" + url.PathEscape(svc.conf.CalendarID) + "/events?conferenceDataVersion=1"
	if err := svc.do(ctx, http.MethodPost, path, payload, &body); err != nil {
		return tuition.MeetingLink{}, err
	}
	return tuition.MeetingLink{
		Provider:   GoogleCalendar,
		URL:        body.HangoutL,
		ExternalID: body.ID,
	}, nil
}

func (svc *gcalService) Cancel(ctx context.Context, link tuition.MeetingLink) error {
	path := "/calendars/" + url.PathEscape(svc.conf.CalendarID) + "/events/" + url.PathEscape(link.ExternalID)
	return svc.do(ctx, http.MethodDelete, path, nil, nil)
}

func (svc *gcalService) do(ctx context.Context, method, path string, payload, out interface{}) error {
	body := bytes.NewBuffer(nil)
	if payload != nil {
		if err := json.NewEncoder(body).Encode(payload); err != nil {
			return errors.Wrap(err, "encoding calendar request")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, svc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+svc.conf.Token)
	req.Header.Set("Content-Type", "application/json")

	res, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling google calendar")
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("calendar request %s %s failed with status %d", method, path, res.StatusCode)
	}
	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding calendar response")
		}
	}
	return nil
}
