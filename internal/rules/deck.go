package rules

import (
	"math/rand"

	"github.com/google/uuid"
)

// HandSize is the number of cards dealt to each player's opening hand.
const HandSize = 5

// deckSize is the per-player reserve drawn from by Scribe.
const deckSize = 4

type cardTemplate struct {
	name    string
	power   int
	ability Ability
}

// catalog is the card pool matches deal from. Power is balanced against
// ability strength: utility cards run weaker bodies.
var catalog = []cardTemplate{
	{"Footsoldier", 3, AbilityNone},
	{"Pikeman", 4, AbilityNone},
	{"Knight", 6, AbilityNone},
	{"Champion", 8, AbilityNone},
	{"Colossus", 9, AbilityNone},
	{"Banner Guard", 3, AbilityRally},
	{"War Drummer", 4, AbilityRally},
	{"Asp Handler", 3, AbilityVenom},
	{"Plague Bearer", 5, AbilityVenom},
	{"Archivist", 2, AbilityScribe},
	{"Lore Keeper", 4, AbilityScribe},
	{"Turncloak", 3, AbilityBreach},
	{"Infiltrator", 5, AbilityBreach},
	{"Shrine Keeper", 3, AbilityWard},
	{"Bulwark", 6, AbilityWard},
}

// Deal produces one player's shuffled hand and reserve deck with fresh
// card instances.
func Deal(rng *rand.Rand) (hand, deck []Card) {
	pool := make([]Card, 0, len(catalog))
	for _, t := range catalog {
		pool = append(pool, Card{
			InstanceID: uuid.New(),
			Name:       t.name,
			Power:      t.power,
			Ability:    t.ability,
		})
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:HandSize], pool[HandSize : HandSize+deckSize]
}
