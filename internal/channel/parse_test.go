package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFacebook(t *testing.T) {
	body := []byte(`{
		"object": "page",
		"entry": [{
			"id": "page-9",
			"messaging": [
				{"sender": {"id": "12345"}, "message": {"text": "giá bao nhiêu?"}},
				{"sender": {"id": "12345"}, "delivery": {"mids": ["m1"]}}
			]
		}]
	}`)

	inbound, err := ParseFacebook(body)
	require.NoError(t, err)
	require.Len(t, inbound, 1)
	assert.Equal(t, Inbound{
		Platform: "facebook",
		SenderID: "12345",
		Message:  "giá bao nhiêu?",
		PageID:   "page-9",
	}, inbound[0])
}

func TestParseFacebookMalformed(t *testing.T) {
	_, err := ParseFacebook([]byte(`{"entry": "nope"`))
	assert.Error(t, err)
}

func TestParseTelegram(t *testing.T) {
	body := []byte(`{
		"update_id": 1,
		"message": {
			"message_id": 7,
			"from": {"id": 555, "is_bot": false, "first_name": "Anh"},
			"chat": {"id": 555, "type": "private"},
			"date": 1700000000,
			"text": "còn hàng không?"
		}
	}`)

	inbound, err := ParseTelegram(body)
	require.NoError(t, err)
	require.NotNil(t, inbound)
	assert.Equal(t, "telegram", inbound.Platform)
	assert.Equal(t, "555", inbound.SenderID)
	assert.Equal(t, "còn hàng không?", inbound.Message)
}

func TestParseTelegramNonText(t *testing.T) {
	inbound, err := ParseTelegram([]byte(`{"update_id": 2, "edited_message": {"message_id": 8}}`))
	require.NoError(t, err)
	assert.Nil(t, inbound)
}

func TestParseZalo(t *testing.T) {
	body := []byte(`{
		"event_name": "user_send_text",
		"sender": {"id": "zl-1"},
		"recipient": {"id": "oa-7"},
		"message": {"text": "ship về Đà Nẵng không?"}
	}`)

	inbound, err := ParseZalo(body)
	require.NoError(t, err)
	require.NotNil(t, inbound)
	assert.Equal(t, Inbound{
		Platform: "zalo",
		SenderID: "zl-1",
		Message:  "ship về Đà Nẵng không?",
		PageID:   "oa-7",
	}, *inbound)
}

func TestParseZaloIgnoresOtherEvents(t *testing.T) {
	inbound, err := ParseZalo([]byte(`{"event_name": "user_send_sticker", "sender": {"id": "zl-1"}}`))
	require.NoError(t, err)
	assert.Nil(t, inbound)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	sender := NewFacebookSender(nil, "token")
	reg.Register("facebook", sender)

	assert.Equal(t, Sender(sender), reg.SenderFor("facebook"))
	assert.Nil(t, reg.SenderFor("web"))
}
