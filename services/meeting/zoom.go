package meetingsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tuition"
)

const Zoom = "zoom"

type zoomService struct {
	conf    core.ZoomConfig
	client  *http.Client
	baseURL string
	authURL string
	logger  core.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var _ tuition.MeetingService = (*zoomService)(nil)

func NewZoomService(conf *core.Config, logger core.Logger) *zoomService {
	return &zoomService{
		conf:    conf.Zoom,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://api.zoom.us/v2",
		authURL: "https://zoom.us/oauth/token",
		logger:  logger,
	}
}

// token returns a valid server-to-server OAuth access token, fetching a new
// one when the cached token is within a minute of expiry.
func (svc *zoomService) token(ctx context.Context) (string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.accessToken != "" && time.Until(svc.tokenExpiry) > time.Minute {
		return svc.accessToken, nil
	}

	q := url.Values{}
	q.Set("grant_type", "account_credentials")
	q.Set("account_id", svc.conf.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.authURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(svc.conf.ClientID, svc.conf.ClientSecret)

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "requesting zoom token")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("zoom token request failed with status %d", res.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decoding zoom token")
	}

	svc.accessToken = body.AccessToken
	svc.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return svc.accessToken, nil
}

func (svc *zoomService) Schedule(ctx context.Context, r tuition.MeetingRequest) (tuition.MeetingLink, error) {
	payload := map[string]interface{}{
		"topic":    r.Topic,
		"type":     3, // recurring, no fixed time
		"duration": r.DurationMins,
		"settings": map[string]interface{}{
			"join_before_host": false,
			"waiting_room":     true,
		},
	}

	var body struct {
		ID      int64  `json:"id"`
		JoinURL string `json:"join_url"`
	}
	if err := svc.do(ctx, http.MethodPost, "/users/me/meetings", payload, &body); err != nil {
		return tuition.MeetingLink{}, err
	}
	return tuition.MeetingLink{
		Provider:   Zoom,
		URL:        body.JoinURL,
		ExternalID: fmt.Sprintf("%d", body.ID),
	}, nil
}

func (svc *zoomService) Cancel(ctx context.Context, link tuition.MeetingLink) error {
	return svc.do(ctx, http.MethodDelete, "/meetings/"+link.ExternalID, nil, nil)
}

func (svc *zoomService) do(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := svc.token(ctx)
	if err != nil {
		return err
	}

	var body *bytes.Buffer
	if payload != nil {
		body = new(bytes.Buffer)
		if err = json.NewEncoder(body).Encode(payload); err != nil {
			return errors.Wrap(err, "encoding zoom request")
		}
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, svc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling zoom")
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("zoom request %s %s failed with status %d", method, path, res.StatusCode)
	}
	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding zoom response")
		}
	}
	return nil
}
