package tool

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/astromechza/sketchy-calendar/pkg/scene"
)

// Replay applies a recorded input script to the dispatcher. Each line is one
// command:
//
//	tool <name> [calendar ids...]
//	down|move|up <x> <y>
//	next | prev
//
// Blank lines and lines starting with # are skipped. It returns the number of
// commands applied.
func Replay(d *Dispatcher, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	applied, lineNo := 0, 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := d.apply(fields); err != nil {
			return applied, fmt.Errorf("line %d: %w", lineNo, err)
		}
		applied++
	}
	if err := scanner.Err(); err != nil {
		return applied, fmt.Errorf("failed to read script: %w", err)
	}
	return applied, nil
}

func (d *Dispatcher) apply(fields []string) error {
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "tool":
		if len(args) == 0 {
			return fmt.Errorf("tool needs a name")
		}
		t, err := ByName(args[0])
		if err != nil {
			return err
		}
		if c, ok := t.(*CreateCalendarCard); ok {
			c.CalendarIDs = append([]string{}, args[1:]...)
		}
		d.SetTool(t)
	case "down", "move", "up":
		p, err := parsePoint(args)
		if err != nil {
			return err
		}
		switch cmd {
		case "down":
			return d.PointerDown(p)
		case "move":
			return d.PointerMove(p)
		default:
			return d.PointerUp(p)
		}
	case "next":
		return d.nav.GotoNext()
	case "prev":
		_, err := d.nav.GotoPrev()
		return err
	default:
		return fmt.Errorf("unknown command '%s'", cmd)
	}
	return nil
}

func parsePoint(args []string) (scene.Point, error) {
	if len(args) != 2 {
		return scene.Point{}, fmt.Errorf("expected <x> <y>, got %d values", len(args))
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return scene.Point{}, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return scene.Point{}, fmt.Errorf("invalid y: %w", err)
	}
	return scene.Point{X: x, Y: y}, nil
}
