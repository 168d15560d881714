package display

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Icon is a visual marker with a Unicode form and an ASCII fallback
type Icon struct {
	Unicode string
	ASCII   string
	Color   Color
}

// IconSystem renders icons with fallbacks for limited terminals
type IconSystem interface {
	RenderIcon(name string) string
	RenderIconWithColor(name string, colorSystem ColorSystem) string
	IsUnicodeSupported() bool
}

type iconSystem struct {
	unicodeSupported bool
	icons            map[string]Icon
}

// NewIconSystem creates an icon system with Unicode detection
func NewIconSystem() IconSystem {
	return &iconSystem{
		unicodeSupported: detectUnicodeSupport(),
		icons: map[string]Icon{
			"success":  {Unicode: "✅", ASCII: "[OK]", Color: ColorGreen},
			"error":    {Unicode: "❌", ASCII: "[ERR]", Color: ColorRed},
			"warning":  {Unicode: "⚠️", ASCII: "[WARN]", Color: ColorYellow},
			"info":     {Unicode: "ℹ️", ASCII: "[i]", Color: ColorCyan},
			"snapshot": {Unicode: "📦", ASCII: "[S]", Color: ColorBlue},
			"table":    {Unicode: "📋", ASCII: "[T]", Color: ColorBlue},
			"user":     {Unicode: "👤", ASCII: "[U]", Color: ColorCyan},
			"skip":     {Unicode: "⏭️", ASCII: "[SKIP]", Color: ColorWhite},
			"restore":  {Unicode: "♻️", ASCII: "[R]", Color: ColorMagenta},
			"lock":     {Unicode: "🔒", ASCII: "[LOCK]", Color: ColorYellow},
		},
	}
}

// detectUnicodeSupport checks if the terminal can render Unicode icons
func detectUnicodeSupport() bool {
	if os.Getenv("FORCE_UNICODE") != "" {
		return true
	}
	if os.Getenv("NO_UNICODE") != "" {
		return false
	}
	if os.Getenv("LANG") == "C" || os.Getenv("LC_ALL") == "C" {
		return false
	}
	term := os.Getenv("TERM")
	if term == "dumb" || term == "vt100" {
		return false
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	return true
}

// RenderIcon returns the icon string for the given name
func (is *iconSystem) RenderIcon(name string) string {
	icon, ok := is.icons[name]
	if !ok {
		return ""
	}
	if is.unicodeSupported {
		return icon.Unicode
	}
	return icon.ASCII
}

// RenderIconWithColor returns the icon string with its color applied
func (is *iconSystem) RenderIconWithColor(name string, colorSystem ColorSystem) string {
	icon, ok := is.icons[name]
	if !ok {
		return ""
	}
	rendered := icon.ASCII
	if is.unicodeSupported {
		rendered = icon.Unicode
	}
	if colorSystem != nil {
		return colorSystem.Colorize(rendered, icon.Color)
	}
	return rendered
}

func (is *iconSystem) IsUnicodeSupported() bool {
	return is.unicodeSupported
}
