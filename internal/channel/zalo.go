package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const zaloSendURL = "https://openapi.zalo.me/v3.0/oa/message/cs"

type zaloEvent struct {
	EventName string `json:"event_name"`
	Sender    struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
}

// ParseZalo extracts the inbound customer message from an OA webhook event.
// Non-text events yield (nil, nil).
func ParseZalo(body []byte) (*Inbound, error) {
	var event zaloEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("parse zalo event: %w", err)
	}
	if event.EventName != "user_send_text" || event.Message.Text == "" {
		return nil, nil
	}
	return &Inbound{
		Platform: "zalo",
		SenderID: event.Sender.ID,
		Message:  event.Message.Text,
		PageID:   event.Recipient.ID,
	}, nil
}

// ZaloSender delivers replies through the OA customer-support API.
type ZaloSender struct {
	logger      *slog.Logger
	accessToken string
	client      *http.Client
}

func NewZaloSender(log *slog.Logger, accessToken string) *ZaloSender {
	if log == nil {
		log = slog.Default()
	}
	return &ZaloSender{
		logger:      log.With(slog.String("service", "zalo_sender")),
		accessToken: accessToken,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ZaloSender) Send(ctx context.Context, recipientID, text string, images []string) error {
	message := map[string]any{"text": text}
	if len(images) > 0 {
		elements := make([]map[string]any, len(images))
		for i, image := range images {
			elements[i] = map[string]any{"media_type": "image", "url": image}
		}
		message["attachment"] = map[string]any{
			"type":    "template",
			"payload": map[string]any{"template_type": "media", "elements": elements},
		}
	}

	body, err := json.Marshal(map[string]any{
		"recipient": map[string]string{"user_id": recipientID},
		"message":   message,
	})
	if err != nil {
		return fmt.Errorf("marshal zalo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, zaloSendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build zalo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", s.accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("zalo send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("zalo send: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
