package clerkevent

import "encoding/json"

// Event is the envelope Clerk posts to the webhook endpoint.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type UserData struct {
	ID string `json:"id"`
}
