package ioptron

import (
	"fmt"
)

type Direction int

const (
	DirectionNone Direction = iota
	North
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	}
	return "none"
}

// ParseDirection accepts the direction names returned by Direction.String.
func ParseDirection(s string) (Direction, error) {
	for d := North; d <= West; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return DirectionNone, fmt.Errorf("direction %q: %w", s, ErrInvalidArgument)
}

var moveCommands = map[Direction]string{
	North: ":mn#",
	South: ":ms#",
	East:  ":me#",
	West:  ":mw#",
}

// openLoopRates are the multiples of sidereal selected by :SR1# to :SR7#.
var openLoopRates = []string{"1x", "2x", "8x", "16x", "64x", "128x", "256x"}

// OpenLoopRates returns the names of the manual move rates, indexed by the
// rate argument of StartOpenLoopMove.
func OpenLoopRates() []string {
	return append([]string(nil), openLoopRates...)
}

// StartOpenLoopMove starts a manual move at openLoopRates[rate]. A goto in
// progress is interrupted first. The move continues until StopOpenLoopMove.
func (m *Mount) StartOpenLoopMove(dir Direction, rate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	move, ok := moveCommands[dir]
	if !ok {
		return fmt.Errorf("move direction %v: %w", dir, ErrInvalidArgument)
	}
	if rate < 0 || rate >= len(openLoopRates) {
		return fmt.Errorf("move rate %d: %w", rate, ErrInvalidArgument)
	}
	if err := m.refresh(); err != nil {
		return err
	}
	if m.info.Status == Slewing {
		if _, err := m.execute(cmdStop, acknowledgeLength); err != nil {
			return err
		}
	}
	if _, err := m.execute(fmt.Sprintf(":SR%d#", rate+1), acknowledgeLength); err != nil {
		return err
	}
	if _, err := m.execute(move, 0); err != nil {
		return err
	}
	m.moveDir = dir
	return nil
}

// StopOpenLoopMove stops the axis moved by the last StartOpenLoopMove.
func (m *Mount) StopOpenLoopMove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return err
	}
	var cmd string
	switch m.moveDir {
	case North, South:
		cmd = cmdStopDecAxis
	case East, West:
		cmd = cmdStopRAAxis
	default:
		return nil
	}
	if _, err := m.execute(cmd, acknowledgeLength); err != nil {
		return err
	}
	m.moveDir = DirectionNone
	return nil
}
