package models

import (
	"fmt"
	"strings"
)

type ActorType string

const (
	ActorUser     ActorType = "USER"
	ActorAdmin    ActorType = "ADMIN"
	ActorOperator ActorType = "OPERATOR"
	ActorSystem   ActorType = "SYSTEM"
)

func ParseActorType(raw string) (ActorType, error) {
	switch t := ActorType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case ActorUser, ActorAdmin, ActorOperator, ActorSystem:
		return t, nil
	default:
		return "", fmt.Errorf("unknown actor type %q", raw)
	}
}

// Actor identifies who requested a change. System actors carry no id.
type Actor struct {
	Type ActorType `json:"type"`
	ID   int64     `json:"id,omitempty"`
}

func UserActor(id int64) Actor     { return Actor{Type: ActorUser, ID: id} }
func AdminActor(id int64) Actor    { return Actor{Type: ActorAdmin, ID: id} }
func OperatorActor(id int64) Actor { return Actor{Type: ActorOperator, ID: id} }
func SystemActor() Actor           { return Actor{Type: ActorSystem} }

func (a Actor) IsSystem() bool   { return a.Type == ActorSystem }
func (a Actor) IsAdmin() bool    { return a.Type == ActorAdmin }
func (a Actor) IsOperator() bool { return a.Type == ActorOperator }
func (a Actor) IsUser() bool     { return a.Type == ActorUser }

// Privileged actors may act on any booking.
func (a Actor) Privileged() bool {
	return a.Type == ActorAdmin || a.Type == ActorSystem
}

// NullableID is the value stored in changed_by_id.
func (a Actor) NullableID() *int64 {
	if a.Type == ActorSystem || a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

func (a Actor) String() string {
	if a.Type == ActorSystem {
		return "system"
	}
	return fmt.Sprintf("%s:%d", strings.ToLower(string(a.Type)), a.ID)
}

// Label is a human readable name for notifications.
func (a Actor) Label() string {
	switch a.Type {
	case ActorUser:
		return fmt.Sprintf("Passenger #%d", a.ID)
	case ActorAdmin:
		return fmt.Sprintf("Admin #%d", a.ID)
	case ActorOperator:
		return fmt.Sprintf("Operator #%d", a.ID)
	default:
		return "System"
	}
}
