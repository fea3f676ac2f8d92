package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/migueldvb/fwrap/tracking"
)

const (
	colorOK    = "32"
	colorStale = "33"
	colorGone  = "31"
)

func paint(s, code string, enabled bool) string {
	if !enabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// renderStatus writes st to w as text, json or yaml.
func renderStatus(w io.Writer, st *tracking.Status, format string, color bool) error {
	switch format {
	case "", "text":
		return renderStatusText(w, st, color)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func renderStatusText(w io.Writer, st *tracking.Status, color bool) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (head %s)\n", st.Artifact, st.Head)
	for _, f := range st.Files {
		switch {
		case f.Missing:
			fmt.Fprintf(&sb, "  %s  %s\n", paint("missing ", colorGone, color), f.Path)
		case f.UpToDate():
			fmt.Fprintf(&sb, "  %s  %s\n", paint("ok      ", colorOK, color), f.Path)
		default:
			fmt.Fprintf(&sb, "  %s  %s\n", paint("modified", colorStale, color), f.Path)
		}
	}
	if len(st.Excluded) > 0 {
		fmt.Fprintf(&sb, "excluded: %s\n", strings.Join(st.Excluded, ", "))
	}
	switch {
	case st.Pending != "":
		sb.WriteString(paint("pending merge of "+st.Pending, colorStale, color) + "\n")
	case st.NeedsUpdate:
		sb.WriteString(paint("update needed", colorStale, color) + "\n")
	default:
		sb.WriteString(paint("up to date", colorOK, color) + "\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
