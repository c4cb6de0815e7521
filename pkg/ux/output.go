// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux styles terminal output for the uncertain CLI.
//
// A Printer renders through a lipgloss renderer bound to its writer, so
// colors are dropped automatically when the writer is not a terminal.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette
var (
	ColorTealBright = lipgloss.Color("#2CD7C7")
	ColorWarning    = lipgloss.Color("#F4D03F")
	ColorError      = lipgloss.Color("#E74C3C")
	ColorMuted      = lipgloss.Color("#2C4A54")
)

// Icon is a status marker printed in front of a line.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes styled lines to one writer.
//
// Write errors are sticky: after the first one every call is a no-op and
// Err returns it.
type Printer struct {
	w   io.Writer
	err error

	title   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
}

// NewPrinter returns a Printer whose color profile is detected from w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		success: r.NewStyle().Foreground(ColorTealBright),
		warning: r.NewStyle().Foreground(ColorWarning),
		failure: r.NewStyle().Foreground(ColorError),
		muted:   r.NewStyle().Foreground(ColorMuted),
	}
}

// Err returns the first write error.
func (p *Printer) Err() error {
	return p.err
}

func (p *Printer) println(s string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, s)
}

// Render returns the icon in its status color.
func (p *Printer) Render(i Icon) string {
	switch i {
	case IconSuccess:
		return p.success.Render(string(i))
	case IconWarning:
		return p.warning.Render(string(i))
	case IconError:
		return p.failure.Render(string(i))
	default:
		return p.muted.Render(string(i))
	}
}

// Title prints a bold heading.
func (p *Printer) Title(text string) {
	p.println(p.title.Render(text))
}

// Status prints one line with an icon and an optional muted detail.
func (p *Printer) Status(icon Icon, text, detail string) {
	line := p.Render(icon) + " " + text
	if detail != "" {
		line += " " + p.muted.Render("("+detail+")")
	}
	p.println(line)
}

// Count is one entry of a Tally line.
type Count struct {
	Icon  Icon
	N     int
	Label string
}

// Tally prints counts on one line, e.g. "3 accepted  1 rejected".
func (p *Printer) Tally(counts ...Count) {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		n := fmt.Sprintf("%d", c.N)
		switch c.Icon {
		case IconSuccess:
			n = p.success.Render(n)
		case IconWarning:
			n = p.warning.Render(n)
		case IconError:
			n = p.failure.Render(n)
		}
		parts = append(parts, n+" "+p.muted.Render(c.Label))
	}
	p.println(strings.Join(parts, "  "))
}
