package core

import "time"

// Realtime channels.
const (
	ChannelFarm = "farm"
	ChannelPet  = "pet"
)

// Event is a state change pushed to the connected clients of a user.
type Event struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel"`
	UserID  string      `json:"user_id"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Publisher fans events out to subscribers. Publish must not block.
type Publisher interface {
	Publish(evt Event)
}

// NewEvent returns an Event stamped with NowFunc.
func NewEvent(channel, typ, userID string, payload interface{}) Event {
	return Event{
		Type:    typ,
		Channel: channel,
		UserID:  userID,
		Payload: payload,
		At:      NowFunc(),
	}
}

// PublisherFunc adapts a func to the Publisher interface.
type PublisherFunc func(evt Event)

func (f PublisherFunc) Publish(evt Event) { f(evt) }
