// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package auth

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Starting attributes for a new account.
const (
	startingHP    = 50
	startingMP    = 10
	startingLevel = 1
)

// starterHabits is the default content seeded for new accounts.
var starterHabits = []Habit{
	{Text: "1h productive work", Up: true},
	{Text: "Eat healthy", Up: true, Down: true},
	{Text: "Stay up late", Down: true},
}

// NewUserFactory produces the default user record shape. Identity
// fields (credentials, API token) are filled in by the caller.
type NewUserFactory interface {
	// NewUser builds a fresh user. seedContent controls whether the
	// default starter content is included.
	NewUser(seedContent bool) *User
}

// DefaultUserFactory implements NewUserFactory with the standard
// starting stats and starter habits.
type DefaultUserFactory struct{}

// NewDefaultUserFactory creates a new DefaultUserFactory.
func NewDefaultUserFactory() *DefaultUserFactory {
	return &DefaultUserFactory{}
}

// NewUser builds a fresh user with default game state.
func (f *DefaultUserFactory) NewUser(seedContent bool) *User {
	now := time.Now()
	user := &User{
		ID: ulid.Make(),
		GameState: GameState{
			Stats: Stats{
				HP:    startingHP,
				MP:    startingMP,
				Level: startingLevel,
			},
			Seeded: seedContent,
		},
		CreatedAt:  now,
		LoggedInAt: now,
	}
	if seedContent {
		user.GameState.Habits = append([]Habit(nil), starterHabits...)
	}
	return user
}

var _ NewUserFactory = (*DefaultUserFactory)(nil)
