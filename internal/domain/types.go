package domain

import "time"

type WorkbenchID string
type AttributeID string
type VariableID string
type MessageID string

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type ValueType string

const (
	ValueTypeText   ValueType = "text"
	ValueTypeSelect ValueType = "select"
)

type Timestamp = time.Time
