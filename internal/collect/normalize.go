package collect

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sells-group/review-scout/internal/model"
)

// Raw is a provider review reduced to the fields the pipeline keeps.
type Raw struct {
	ReviewID           string
	PlaceID            string
	Rating             int
	Date               string
	ReviewerName       string
	ReviewerProfileURL string
	Text               string
	OwnerReply         string
	ReviewURL          string
}

// Normalize reads one raw provider review. placeID is the id the reviews
// were requested with; placeURL backs up a missing review link.
func Normalize(raw json.RawMessage, placeID, placeURL string, now time.Time) Raw {
	r := gjson.ParseBytes(raw)

	name, profile := reviewer(r)
	date := firstString(r, "iso_date", "date", "published_date")
	if date == "" {
		date = now.UTC().Format("2006-01-02")
	}
	link := firstString(r, "link")
	if link == "" {
		link = placeURL
	}
	key := link
	if key == "" {
		key = date
	}

	return Raw{
		ReviewID:           model.DeriveReviewID(placeID, key, name),
		PlaceID:            placeID,
		Rating:             int(r.Get("rating").Int()),
		Date:               date,
		ReviewerName:       name,
		ReviewerProfileURL: profile,
		Text:               firstString(r, "snippet", "text", "description", "extracted_snippet.original"),
		OwnerReply:         ownerReply(r),
		ReviewURL:          link,
	}
}

// reviewer accepts either a plain name or a user object.
func reviewer(r gjson.Result) (string, string) {
	for _, key := range []string{"user", "author", "username"} {
		v := r.Get(key)
		switch {
		case v.IsObject():
			return firstString(v, "name", "username", "author", "display_name"),
				firstString(v, "link", "profile_url")
		case v.Type == gjson.String && strings.TrimSpace(v.String()) != "":
			return strings.TrimSpace(v.String()), ""
		}
	}
	return "", ""
}

func ownerReply(r gjson.Result) string {
	for _, key := range []string{"owner_response", "response"} {
		v := r.Get(key)
		if v.IsObject() {
			if s := firstString(v, "text", "snippet"); s != "" {
				return s
			}
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := r.Get(p)
		if v.IsObject() || v.IsArray() {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}
