package models

import "encoding/json"

// Event names exchanged on the websocket channel.
const (
	EventNewReport       = "new_report"
	EventDepartmentAlert = "department_alert"
	EventStatusUpdated   = "status_updated"
	EventJoinDepartment  = "join_department"
	EventLeaveDepartment = "leave_department"
	EventJoined          = "joined"
	EventError           = "error"
)

// Event is the envelope for every message on the websocket channel.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// InboundEvent is a client-to-server message. Data is decoded per event name.
type InboundEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// DepartmentAlert is the payload pushed to a jurisdiction group on report creation.
type DepartmentAlert struct {
	Message    string  `json:"message"`
	Urgency    string  `json:"urgency"` // "critical" or "info"
	Department string  `json:"department"`
	Report     *Report `json:"report"`
}

// ErrorPayload is sent to a single client when its request cannot be honoured.
type ErrorPayload struct {
	Message string `json:"message"`
}
