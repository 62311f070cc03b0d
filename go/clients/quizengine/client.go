// Package quizengine is the HTTP client for the quiz content and scoring
// service. The service generates quiz content for a requested type and
// duration, collects answers while a session is open, and computes the final
// ranking with reward artifacts once it closes.
package quizengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
)

// Client talks to the quiz engine. Calls carry no retry; a single failure is
// surfaced to the caller, which decides how to degrade.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a quiz engine client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type quizResponse struct {
	QuizText string   `json:"quizText"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
	ImageURL string   `json:"imageUrl"`
}

// FetchQuiz asks the engine to generate content for a quiz type and duration.
func (c *Client) FetchQuiz(ctx context.Context, quizType models.QuizType, durationSec int) (*models.QuizContent, error) {
	query := url.Values{}
	query.Set("type", string(quizType))
	query.Set("duration", strconv.Itoa(durationSec))

	body, err := c.doRequest(ctx, http.MethodGet, "/quiz?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch quiz: %w", err)
	}

	var resp quizResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode quiz response: %w", err)
	}
	if resp.QuizText == "" || len(resp.Options) == 0 || resp.Answer == "" {
		return nil, fmt.Errorf("quiz engine returned incomplete content")
	}

	return &models.QuizContent{
		Question: resp.QuizText,
		Options:  resp.Options,
		Answer:   resp.Answer,
		ImageURL: resp.ImageURL,
	}, nil
}

type answerRequest struct {
	UserID   string         `json:"user_id"`
	QuizID   string         `json:"quiz_id"`
	Correct  bool           `json:"correct"`
	UserData answerUserData `json:"user_data"`
}

type answerUserData struct {
	DisplayName       string `json:"display_name"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

// ReportAnswer forwards one participant's answer so the engine can rank
// participants when the session closes.
func (c *Client) ReportAnswer(ctx context.Context, sessionID uuid.UUID, report models.AnswerReport) error {
	payload, err := json.Marshal(answerRequest{
		UserID:  report.ParticipantID,
		QuizID:  sessionID.String(),
		Correct: report.Correct,
		UserData: answerUserData{
			DisplayName:       report.DisplayName,
			ProfilePictureURL: report.AvatarURL,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/answers", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("report answer: %w", err)
	}
	return nil
}

type resultsRequest struct {
	QuizID string `json:"quizId"`
}

type rankedUser struct {
	UserID      string `json:"user_id"`
	Placement   int    `json:"placement"`
	RewardImage string `json:"rewardImage"`
	UserData    struct {
		DisplayName string `json:"display_name"`
	} `json:"user_data"`
}

type resultsResponse struct {
	TopUsersWithImages []rankedUser `json:"topUsersWithImages"`
	OtherUsers         []rankedUser `json:"otherUsers"`
}

// FetchResults asks the engine for the final ranking of a closed session.
func (c *Client) FetchResults(ctx context.Context, sessionID uuid.UUID) (*models.QuizResults, error) {
	payload, err := json.Marshal(resultsRequest{QuizID: sessionID.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal results request: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/results", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}

	var resp resultsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode results response: %w", err)
	}

	results := &models.QuizResults{}
	for i, user := range resp.TopUsersWithImages {
		placement := user.Placement
		if placement <= 0 {
			placement = i + 1
		}
		results.Ranked = append(results.Ranked, models.RankedParticipant{
			ParticipantID:  user.UserID,
			DisplayName:    user.UserData.DisplayName,
			Placement:      placement,
			RewardImageURL: user.RewardImage,
		})
	}
	for _, user := range resp.OtherUsers {
		results.Others = append(results.Others, models.RankedParticipant{
			ParticipantID: user.UserID,
			DisplayName:   user.UserData.DisplayName,
			Placement:     user.Placement,
		})
	}
	return results, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("quiz engine returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}
	return responseBody, nil
}
