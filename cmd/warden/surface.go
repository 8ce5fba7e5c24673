package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"textwarden/internal/engine"
	"textwarden/internal/geometry"
	"textwarden/internal/host"
	"textwarden/internal/host/rodhost"
	"textwarden/internal/textindex"
)

// Browser target flags shared by the surface-facing commands.
var (
	targetURL   string
	selector    string
	debuggerURL string
	headless    bool
)

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&targetURL, "url", "", "page to open")
	cmd.Flags().StringVar(&selector, "selector", "[contenteditable]", "CSS selector of the editing element")
	cmd.Flags().StringVar(&debuggerURL, "debugger-url", "", "attach to a running browser instead of launching")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the launched browser headless")
	_ = cmd.MarkFlagRequired("url")
}

// openTarget connects a browser surface and wraps it as an engine target.
func openTarget(ctx context.Context) (engine.Target, func(), error) {
	rcfg := rodhost.DefaultConfig()
	rcfg.DebuggerURL = debuggerURL
	rcfg.Headless = headless

	browser, err := rodhost.Connect(ctx, rcfg)
	if err != nil {
		return engine.Target{}, nil, err
	}
	surface, err := rodhost.Open(browser, targetURL, selector)
	if err != nil {
		_ = browser.Close()
		return engine.Target{}, nil, fmt.Errorf("bind element: %w", err)
	}

	frame := geometry.Rect{}
	if b, err := surface.QueryBounds(ctx, fullRange(ctx, surface)); err == nil {
		frame = b
	}

	target := engine.Target{HostID: hostID, Surface: surface, Frame: frame}
	return target, func() { _ = browser.Close() }, nil
}

func fullRange(ctx context.Context, s host.Surface) textindex.Range {
	n, err := s.TextLength(ctx)
	if err != nil {
		return textindex.Range{}
	}
	return textindex.NewRange(0, n)
}
