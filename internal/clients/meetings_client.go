// internal/clients/meetings_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"campusmeet/internal/meeting"
	"campusmeet/internal/schedule"
)

// MeetingsClient calls the meetings service over HTTP on behalf of one
// acting user per request.
type MeetingsClient struct {
	baseURL string
	http    *http.Client
}

func NewMeetingsClient(baseURL string) *MeetingsClient {
	return &MeetingsClient{baseURL: baseURL, http: http.DefaultClient}
}

func (c *MeetingsClient) do(ctx context.Context, method, path, userID string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *MeetingsClient) CreateMeeting(ctx context.Context, userID string, input meeting.CreateMeetingInput) (*meeting.Meeting, error) {
	var m meeting.Meeting
	if err := c.do(ctx, http.MethodPost, "/meetings", userID, input, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *MeetingsClient) GetMeeting(ctx context.Context, userID string, id uuid.UUID) (*meeting.Meeting, error) {
	var m meeting.Meeting
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/meetings/%s", id), userID, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *MeetingsClient) RequestJoin(ctx context.Context, userID string, id uuid.UUID, info meeting.JoinInfo) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/meetings/%s/join", id), userID, info, nil)
}

func (c *MeetingsClient) DecideJoinRequest(ctx context.Context, actorID string, id uuid.UUID, userID string, decision meeting.Decision) error {
	body := struct {
		Decision meeting.Decision `json:"decision"`
	}{Decision: decision}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/meetings/%s/join/%s/decision", id, userID), actorID, body, nil)
}

func (c *MeetingsClient) SubmitAvailability(ctx context.Context, userID string, id uuid.UUID, slots []schedule.SlotID) error {
	body := struct {
		Slots []schedule.SlotID `json:"slots"`
	}{Slots: slots}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/meetings/%s/availability", id), userID, body, nil)
}

func (c *MeetingsClient) StartAttendance(ctx context.Context, userID string, id uuid.UUID) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/meetings/%s/attendance", id), userID, nil, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

func (c *MeetingsClient) SubmitAttendanceCode(ctx context.Context, userID string, id uuid.UUID, code string) error {
	body := struct {
		Code string `json:"code"`
	}{Code: code}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/meetings/%s/attendance/code", id), userID, body, nil)
}
