package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/anafis/workspace/internal/domain/drag"
	"github.com/anafis/workspace/internal/domain/tabs"
	"github.com/anafis/workspace/internal/domain/workspace"
	"github.com/anafis/workspace/internal/shared/id"
)

var errUsage = errors.New("usage")

const help = `commands:
  list                      show tabs, active first marked with *
  open <type> [title]       open a new tab
  close <tab>               close a tab
  move <tab> <onto>         drag a tab onto another tab
  detach <tab> [x y]        move a tab into its own window
  drop <tab> <window>       drag a tab onto another window's tab bar
  reattach                  send this window's tab back to main
  help`

// runConsole drives the workspace from line commands until ctx ends or in
// is exhausted.
func runConsole(ctx context.Context, ws *workspace.Workspace, in io.Reader, out io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := execute(ctx, ws, strings.Fields(line), out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}

func execute(ctx context.Context, ws *workspace.Workspace, args []string, out io.Writer) error {
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "help":
		fmt.Fprintln(out, help)
		return nil

	case "list":
		active := ws.Store().ActiveID()
		for _, t := range ws.Store().Tabs() {
			mark := " "
			if t.ID == active {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %s\t%s\t%s\tv%d\n", mark, t.ID, t.ContentType, t.Title, t.Version)
		}
		return nil

	case "open":
		if len(args) < 2 {
			return fmt.Errorf("%w: open <type> [title]", errUsage)
		}
		ct, err := tabs.ParseContentType(args[1])
		if err != nil {
			return err
		}
		title := strings.Join(args[2:], " ")
		if title == "" {
			title = string(ct)
		}
		info := tabs.Info{
			ID:          id.Default().GenerateWithPrefix(string(ct)),
			Title:       title,
			ContentType: ct,
		}
		if _, err := ws.OpenTab(info); err != nil {
			return err
		}
		fmt.Fprintln(out, info.ID)
		return nil

	case "close":
		if len(args) != 2 {
			return fmt.Errorf("%w: close <tab>", errUsage)
		}
		removed, err := ws.CloseTab(ctx, args[1])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%w: %s", tabs.ErrTabNotFound, args[1])
		}
		return nil

	case "move":
		if len(args) != 3 {
			return fmt.Errorf("%w: move <tab> <onto>", errUsage)
		}
		return gesture(ctx, ws, args[1], drag.Release{
			Target: drag.Target{Kind: drag.TargetTab, TabID: args[2]},
		}, out)

	case "detach":
		if len(args) != 2 && len(args) != 4 {
			return fmt.Errorf("%w: detach <tab> [x y]", errUsage)
		}
		pos := tabs.DefaultPosition
		if len(args) == 4 {
			x, errX := strconv.Atoi(args[2])
			y, errY := strconv.Atoi(args[3])
			if err := errors.Join(errX, errY); err != nil {
				return fmt.Errorf("%w: position must be integers", errUsage)
			}
			pos = tabs.Position{X: x, Y: y}
		}
		return ws.Detach(ctx, args[1], pos)

	case "drop":
		if len(args) != 3 {
			return fmt.Errorf("%w: drop <tab> <window>", errUsage)
		}
		target := id.WindowID(args[2])
		if !target.Valid() {
			return fmt.Errorf("invalid window %q", target)
		}
		return gesture(ctx, ws, args[1], drag.Release{
			Target: drag.Target{Kind: drag.TargetForeignBar, Window: target},
		}, out)

	case "reattach":
		info, err := ws.Reattach(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "reattached %s\n", info.ID)
		return nil
	}

	return fmt.Errorf("%w: unknown command %q, try help", errUsage, args[0])
}

// gesture replays a horizontal drag of tabID ending in rel.
func gesture(ctx context.Context, ws *workspace.Workspace, tabID string, rel drag.Release, out io.Writer) error {
	coord := ws.Drag()
	if !coord.PointerDown(tabID, drag.Point{}) {
		return fmt.Errorf("tab %s cannot be dragged", tabID)
	}
	coord.PointerMove(drag.Point{X: 100})

	res, err := ws.Release(ctx, rel)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Outcome)
	return nil
}
