// Package viz renders runs in the terminal.
//
// [Model] is a Bubble Tea program stepping an integrator live: it shows the
// tip displacement history, a damage map of the body (or its magnified
// deformed shape) and the integrator counters. [Summary] renders the
// outcome of a finished run.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Reset to the undeformed, unbroken body
//	M     - Toggle damage map and deformed shape
//	+/-   - Double or halve the steps per frame
//	Q     - Quit
package viz
