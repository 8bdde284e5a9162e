package models

// ChatMessage holds a single entry of the session chat log. MsgIDs are assigned
// by the relay while online and are unique within a session epoch; offline
// clients assign their own local sequence.
type ChatMessage struct {
	MsgID     int           `json:"msgId"`
	UserID    string        `json:"userId"`
	UserName  string        `json:"userName"`
	Color     Color         `json:"color"`
	Timestamp int64         `json:"timestamp"`
	Message   string        `json:"msg"`
	IsEvent   bool          `json:"isEvent"`
	EventType string        `json:"eventType,omitempty"`
	EventData []interface{} `json:"eventData,omitempty"`
}
