// Package chat models what the bot shows and what the user can press,
// independent of the messaging API.
package chat

import (
	"errors"
	"fmt"
	"strings"

	"go-hh-autoreply/internal/models"
)

var ErrUnknownAction = errors.New("unknown action")

type ActionKind int

const (
	ActionMenu ActionKind = iota + 1
	ActionSetField
	ActionSubmenu
	ActionToggle
	ActionChooseArea
	ActionChooseResume
	ActionNext
	ActionStop
	ActionRespond
	ActionResetFilters
)

type Menu string

const (
	MenuMain     Menu = "main"
	MenuSettings Menu = "settings"
	MenuFilters  Menu = "filters"
)

// Action is a decoded button press. Which fields are set depends on Kind:
// Menu for ActionMenu, Field for set/sub/toggle, Value for toggle and the
// id-carrying kinds.
type Action struct {
	Kind  ActionKind
	Menu  Menu
	Field models.Field
	Value string
}

func OpenMenu(m Menu) Action { return Action{Kind: ActionMenu, Menu: m} }
func SetField(f models.Field) Action { return Action{Kind: ActionSetField, Field: f} }
func Submenu(f models.Field) Action { return Action{Kind: ActionSubmenu, Field: f} }
func Toggle(f models.Field, v string) Action { return Action{Kind: ActionToggle, Field: f, Value: v} }
func ChooseArea(id string) Action { return Action{Kind: ActionChooseArea, Value: id} }
func ChooseResume(id string) Action { return Action{Kind: ActionChooseResume, Value: id} }
func Next() Action { return Action{Kind: ActionNext} }
func Stop() Action { return Action{Kind: ActionStop} }
func Respond(vacancyID string) Action { return Action{Kind: ActionRespond, Value: vacancyID} }
func ResetFilters() Action { return Action{Kind: ActionResetFilters} }

// Token encodes the action as callback data.
func (a Action) Token() string {
	switch a.Kind {
	case ActionMenu:
		return "menu:" + string(a.Menu)
	case ActionSetField:
		return "set:" + string(a.Field)
	case ActionSubmenu:
		return "sub:" + string(a.Field)
	case ActionToggle:
		return "toggle:" + string(a.Field) + ":" + a.Value
	case ActionChooseArea:
		return "choose_area:" + a.Value
	case ActionChooseResume:
		return "choose_resume:" + a.Value
	case ActionNext:
		return "next"
	case ActionStop:
		return "stop"
	case ActionRespond:
		return "resp:" + a.Value
	case ActionResetFilters:
		return "reset:filters"
	}
	return ""
}

// ParseAction decodes callback data. Unknown or malformed tokens return
// ErrUnknownAction.
func ParseAction(token string) (Action, error) {
	switch token {
	case "next":
		return Next(), nil
	case "stop":
		return Stop(), nil
	case "reset:filters":
		return ResetFilters(), nil
	}

	prefix, rest, ok := strings.Cut(token, ":")
	if !ok || rest == "" {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, token)
	}

	switch prefix {
	case "menu":
		switch m := Menu(rest); m {
		case MenuMain, MenuSettings, MenuFilters:
			return OpenMenu(m), nil
		}
	case "set":
		f := models.Field(rest)
		if f.Valid() && !f.MultiSelect() {
			return SetField(f), nil
		}
	case "sub":
		f := models.Field(rest)
		if f.MultiSelect() {
			return Submenu(f), nil
		}
	case "toggle":
		field, value, ok := strings.Cut(rest, ":")
		f := models.Field(field)
		if ok && value != "" && f.MultiSelect() {
			return Toggle(f, value), nil
		}
	case "choose_area":
		return ChooseArea(rest), nil
	case "choose_resume":
		return ChooseResume(rest), nil
	case "resp":
		return Respond(rest), nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, token)
}

func (k ActionKind) String() string {
	switch k {
	case ActionMenu:
		return "menu"
	case ActionSetField:
		return "set"
	case ActionSubmenu:
		return "sub"
	case ActionToggle:
		return "toggle"
	case ActionChooseArea:
		return "choose_area"
	case ActionChooseResume:
		return "choose_resume"
	case ActionNext:
		return "next"
	case ActionStop:
		return "stop"
	case ActionRespond:
		return "resp"
	case ActionResetFilters:
		return "reset"
	}
	return "unknown"
}
