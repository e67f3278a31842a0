package collect

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Raw
	}{
		{
			name: "serpapi shape",
			raw: `{"rating": 1, "snippet": "  Soup had a fly. ", "iso_date": "2024-06-01T10:00:00Z",
				"link": "https://maps/r/1", "user": {"name": "Ana", "link": "https://maps/u/ana"},
				"response": {"snippet": "The fly was a guest."}}`,
			want: Raw{
				ReviewID: "0x1:https://maps/r/1:Ana", PlaceID: "0x1", Rating: 1, Date: "2024-06-01T10:00:00Z",
				ReviewerName: "Ana", ReviewerProfileURL: "https://maps/u/ana", Text: "Soup had a fly.",
				OwnerReply: "The fly was a guest.", ReviewURL: "https://maps/r/1",
			},
		},
		{
			name: "alias keys and string reviewer",
			raw:  `{"rating": 2.0, "text": "Cold coffee", "date": "a week ago", "author": " Luis ", "owner_response": "Thanks"}`,
			want: Raw{
				ReviewID: "0x1:https://maps/place:Luis", PlaceID: "0x1", Rating: 2, Date: "a week ago",
				ReviewerName: "Luis", Text: "Cold coffee", OwnerReply: "Thanks", ReviewURL: "https://maps/place",
			},
		},
		{
			name: "extracted snippet and object reply",
			raw: `{"rating": 1, "extracted_snippet": {"original": "Original text"}, "published_date": "2024-05-05",
				"username": {"display_name": "Zoe", "profile_url": "https://p/zoe"}, "owner_response": {"text": "Reply"}}`,
			want: Raw{
				ReviewID: "0x1:https://maps/place:Zoe", PlaceID: "0x1", Rating: 1, Date: "2024-05-05",
				ReviewerName: "Zoe", ReviewerProfileURL: "https://p/zoe", Text: "Original text",
				OwnerReply: "Reply", ReviewURL: "https://maps/place",
			},
		},
		{
			name: "bare review",
			raw:  `{"description": "Meh"}`,
			want: Raw{
				ReviewID: "0x1:https://maps/place:anon", PlaceID: "0x1", Date: "2024-07-01",
				Text: "Meh", ReviewURL: "https://maps/place",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(json.RawMessage(tt.raw), "0x1", "https://maps/place", fixedNow)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_NoLinkUsesDate(t *testing.T) {
	got := Normalize(json.RawMessage(`{"rating": 1, "snippet": "x", "date": "2024-01-02"}`), "p", "", fixedNow)
	assert.Equal(t, "p:2024-01-02:anon", got.ReviewID)
	assert.Empty(t, got.ReviewURL)
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := json.RawMessage(`{"rating": 1, "snippet": "x", "user": "Ana", "link": "https://maps/r/9"}`)
	a := Normalize(raw, "p", "", fixedNow)
	b := Normalize(raw, "p", "", fixedNow.Add(48*time.Hour))
	assert.Equal(t, a.ReviewID, b.ReviewID)
}
