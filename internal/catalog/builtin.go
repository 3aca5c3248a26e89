package catalog

// Builtin - the compiled-in card set. Every peer carries it, so a session
// works out of the box without a catalog file.
func Builtin() *Catalog {
	definitions := []Definition{
		{BaseID: "scout", Name: "Outer Ward Scout", BasePower: 2, Abilities: []string{"strike"}},
		{BaseID: "sentinel", Name: "Gate Sentinel", BasePower: 3, Abilities: []string{"guard"}},
		{BaseID: "golem", Name: "Forge Golem", BasePower: 5, Abilities: []string{"strike", "guard"}},
		{BaseID: "courier", Name: "Back-Alley Courier", BasePower: 1, Abilities: []string{"infiltrate"}},
		{BaseID: "warden", Name: "Spire Warden", BasePower: 4, Abilities: []string{"guard", "rally"}},
		{BaseID: "saboteur", Name: "Cinder Saboteur", BasePower: 2, Abilities: []string{"infiltrate", "strike"}},
		{BaseID: "chronicler", Name: "Vault Chronicler", BasePower: 1, Abilities: []string{"scry"}},
		{BaseID: "dragoon", Name: "Skirmish Dragoon", BasePower: 4, Abilities: []string{"strike", "rally"}},
		{BaseID: "relic", Name: "Dormant Relic", BasePower: 0},
		{BaseID: "alchemist", Name: "Gutter Alchemist", BasePower: 2, Abilities: []string{"scavenge"}},
	}

	decks := []Deck{
		{
			ID:   "vanguard",
			Name: "Vanguard",
			Cards: []string{
				"scout", "scout", "sentinel", "sentinel", "golem",
				"dragoon", "dragoon", "warden", "relic", "courier",
				"scout", "golem",
			},
		},
		{
			ID:   "shadow",
			Name: "Shadow",
			Cards: []string{
				"courier", "courier", "saboteur", "saboteur", "chronicler",
				"alchemist", "alchemist", "warden", "relic", "scout",
				"saboteur", "chronicler",
			},
		},
	}

	cat, err := New(definitions, decks)
	if err != nil {
		// the builtin set is validated by tests, a failure here is a bug
		panic(err)
	}
	return cat
}
