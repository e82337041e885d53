package cpu

// TickTimers decrements the delay and sound timers, each floored at zero.
// Call at 60Hz, independently of Tick.
//
// Returns true when the sound timer has just expired, which is when the
// caller should sound its tone.
func (cpu *Cpu) TickTimers() (beep bool) {
	if cpu.Delay > 0 {
		cpu.Delay--
	}

	if cpu.Sound > 0 {
		cpu.Sound--
		beep = cpu.Sound == 0
	}

	return
}
