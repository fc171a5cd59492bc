package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const facebookSendURL = "https://graph.facebook.com/v17.0/me/messages"

type facebookWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string `json:"id"`
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// ParseFacebook extracts inbound customer messages from a page webhook
// payload. Events without text (delivery receipts, reactions) are skipped.
func ParseFacebook(body []byte) ([]Inbound, error) {
	var payload facebookWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse facebook webhook: %w", err)
	}

	var inbound []Inbound
	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			if event.Message.Text == "" {
				continue
			}
			inbound = append(inbound, Inbound{
				Platform: "facebook",
				SenderID: event.Sender.ID,
				Message:  event.Message.Text,
				PageID:   entry.ID,
			})
		}
	}
	return inbound, nil
}

// FacebookSender delivers replies through the Graph send API.
type FacebookSender struct {
	logger    *slog.Logger
	pageToken string
	client    *http.Client
}

func NewFacebookSender(log *slog.Logger, pageToken string) *FacebookSender {
	if log == nil {
		log = slog.Default()
	}
	return &FacebookSender{
		logger:    log.With(slog.String("service", "facebook_sender")),
		pageToken: pageToken,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *FacebookSender) Send(ctx context.Context, recipientID, text string, images []string) error {
	if err := s.post(ctx, map[string]any{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}); err != nil {
		return err
	}
	for _, image := range images {
		if err := s.post(ctx, map[string]any{
			"recipient": map[string]string{"id": recipientID},
			"message": map[string]any{
				"attachment": map[string]any{
					"type":    "image",
					"payload": map[string]any{"url": image, "is_reusable": true},
				},
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *FacebookSender) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal facebook payload: %w", err)
	}

	endpoint := facebookSendURL + "?access_token=" + url.QueryEscape(s.pageToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build facebook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("facebook send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("facebook send: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
