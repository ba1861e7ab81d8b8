package hal

// Logical pin roles used by the motion engine (spec.md §4.2). Values are
// BCM numbers for a 40-pin Raspberry Pi header; they match the wiring in
// the machine this spec was distilled from (winder_engine_rpi.py).
const (
	PinXStep        = 17
	PinXDir         = 27
	PinYStep        = 22
	PinYDir         = 23
	PinMotorEnable  = 24 // active-low: LOW enables the stepper drivers
	PinYLimit       = 26 // pulled up, LOW when the switch is engaged
	PinEncA         = 5
	PinEncB         = 6
)

// OutputPins returns every output pin the engine drives, for the
// once-at-startup SetMode/initial-LOW sequence in spec.md §4.2.
func OutputPins() []int {
	return []int{PinXStep, PinXDir, PinYStep, PinYDir, PinMotorEnable}
}

// InputPins returns every pulled-up input pin the engine reads.
func InputPins() []int {
	return []int{PinYLimit, PinEncA, PinEncB}
}
