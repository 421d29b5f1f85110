// Package command defines the decoded vehicle command shared by the RL codec
// and the control loop's emission pipeline.
package command

import "wheellybridge/bridge/internal/geometry"

// Command is a fully resolved motion/scan instruction, or a halt.
type Command struct {
	Halt      bool
	Direction geometry.Complex
	SpeedPPS  float64
	ScanDir   geometry.Complex
	HasScan   bool
}

// HaltCommand returns the canonical stop instruction.
func HaltCommand() Command {
	return Command{Halt: true}
}

// Move returns a motion command with an attached scan direction.
func Move(direction geometry.Complex, speedPPS float64, scanDir geometry.Complex) Command {
	return Command{Direction: direction, SpeedPPS: speedPPS, ScanDir: scanDir, HasScan: true}
}
