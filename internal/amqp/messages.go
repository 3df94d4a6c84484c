package amqp

import (
	"encoding/json"
	"time"
)

// RefreshHint tells a widget reader to reload its slot now instead of
// waiting for the next poll. It carries no snapshot data; the slot is the
// source of truth.
type RefreshHint struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRefreshHint(userID string) *RefreshHint {
	return &RefreshHint{
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (h *RefreshHint) ToJSON() ([]byte, error) {
	return json.Marshal(h)
}

func RefreshHintFromJSON(data []byte) (*RefreshHint, error) {
	var hint RefreshHint
	if err := json.Unmarshal(data, &hint); err != nil {
		return nil, err
	}
	return &hint, nil
}
