package ecsim

// registerCommonComponents registers the shared fixture types used across
// this package's tests, so WithValue/WithTag/Read/HasTerm/NotTerm (which all
// resolve ids via the panicking GetID) can be used against them without each
// test repeating the boilerplate.
func registerCommonComponents(w *World) {
	RegisterComponent[testPosition](w.Components, "Position")
	RegisterComponent[testVelocity](w.Components, "Velocity")
	RegisterComponent[testHealth](w.Components, "Health")
	RegisterTag[testDead](w.Components, "Dead")
}

func newTestWorld() *World {
	w := NewWorld()
	registerCommonComponents(w)
	return w
}

func newTestWorldWithOptions(opts WorldOptions) *World {
	w := NewWorldWithOptions(opts)
	registerCommonComponents(w)
	return w
}
