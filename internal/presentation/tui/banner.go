// Package tui prints the interactive CLI chrome: the banner and live stage progress.
package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	"     _        _    __",
	" ___| |_ __ _| |_ / _| ___  _ __ __ _  ___",
	"/ __| __/ _` | __| |_ / _ \\| '__/ _` |/ _ \\",
	"\\__ \\ || (_| | |_|  _| (_) | | | (_| |  __/",
	"|___/\\__\\__,_|\\__|_|  \\___/|_|  \\__, |\\___|",
	"                                |___/",
}

var bannerColors = []string{"#f59e0b", "#f97316", "#ef4444", "#e11d48", "#be123c", "#9f1239"}

// PrintBanner writes the ASCII banner with a fire gradient and the version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i])))
	}
	fmt.Fprintln(w, out.String("  "+version).Faint())
	fmt.Fprintln(w)
}
