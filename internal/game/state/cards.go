package state

import "strings"

// CardKind classifies a treachery card by its battle role.
type CardKind string

const (
	CardProjectileWeapon CardKind = "PROJECTILE_WEAPON"
	CardPoisonWeapon     CardKind = "POISON_WEAPON"
	CardLasgun           CardKind = "LASGUN"
	CardShield           CardKind = "SHIELD"
	CardSnooper          CardKind = "SNOOPER"
	CardCheapHero        CardKind = "CHEAP_HERO"
	CardWorthless        CardKind = "WORTHLESS"
	CardKarama           CardKind = "KARAMA"
	CardOther            CardKind = "OTHER"
)

// Card is a single treachery card instance.
type Card struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind CardKind `json:"kind"`
}

// IsWeapon reports whether the kind occupies the weapon slot on its own merits.
func (k CardKind) IsWeapon() bool {
	switch k {
	case CardProjectileWeapon, CardPoisonWeapon, CardLasgun:
		return true
	}
	return false
}

// IsDefense reports whether the kind occupies the defense slot on its own merits.
func (k CardKind) IsDefense() bool {
	return k == CardShield || k == CardSnooper
}

// CanPlayAsWeapon reports whether the kind may be placed in the weapon slot.
func (k CardKind) CanPlayAsWeapon() bool { return k.IsWeapon() || k == CardWorthless }

// CanPlayAsDefense reports whether the kind may be placed in the defense slot.
func (k CardKind) CanPlayAsDefense() bool { return k.IsDefense() || k == CardWorthless }

// AlwaysDiscard reports whether the card leaves play after every battle it is used in.
func (k CardKind) AlwaysDiscard() bool {
	return k == CardCheapHero || k == CardWorthless
}

// Counters reports whether the defense kind stops the weapon kind.
// A lasgun has no counter; an empty weapon slot needs none.
func Counters(weapon, defense CardKind) bool {
	switch weapon {
	case CardProjectileWeapon:
		return defense == CardShield
	case CardPoisonWeapon:
		return defense == CardSnooper
	case CardLasgun:
		return false
	}
	return true
}

var cardCatalog = map[string]CardKind{
	"crysknife":       CardProjectileWeapon,
	"maula pistol":    CardProjectileWeapon,
	"slip tip":        CardProjectileWeapon,
	"stunner":         CardProjectileWeapon,
	"chaumas":         CardPoisonWeapon,
	"chaumurky":       CardPoisonWeapon,
	"ellaca drug":     CardPoisonWeapon,
	"gom jabbar":      CardPoisonWeapon,
	"lasgun":          CardLasgun,
	"shield":          CardShield,
	"snooper":         CardSnooper,
	"cheap hero":      CardCheapHero,
	"cheap heroine":   CardCheapHero,
	"baliset":         CardWorthless,
	"jubba cloak":     CardWorthless,
	"kulon":           CardWorthless,
	"la la la":        CardWorthless,
	"trip to gamont":  CardWorthless,
	"karama":          CardKarama,
	"truthtrance":     CardOther,
	"weather control": CardOther,
	"family atomics":  CardOther,
	"hajr":            CardOther,
	"tleilaxu ghola":  CardOther,
}

// NewCard builds a card, resolving its kind from the catalog by name.
func NewCard(id, name string) Card {
	kind, ok := cardCatalog[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		kind = CardOther
	}
	return Card{ID: id, Name: name, Kind: kind}
}
