package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{` ____                                        `, "#38bdf8"},
	{`|  _ \  ___   ___  _ __ _ __ ___   __ _ _ __  `, "#22d3ee"},
	{`| | | |/ _ \ / _ \| '__| '_ ` + "`" + ` _ \ / _` + "`" + ` | '_ \ `, "#2dd4bf"},
	{`| |_| | (_) | (_) | |  | | | | | | (_| | | | |`, "#34d399"},
	{`|____/ \___/ \___/|_|  |_| |_| |_|\__,_|_| |_|`, "#4ade80"},
}

// PrintBanner writes the Doorman banner and the version to w.
// Colors degrade with the terminal profile of w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, out.String("  "+version).Faint())
	}
	fmt.Fprintln(w)
}
