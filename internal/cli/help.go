package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AA00")).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAAA")).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)
)

// generalSection holds flags without a group
const generalSection = "Flags"

// StyledHelpPrinter creates a custom help printer with Lipgloss styling.
// Flags are listed under their group heading in declaration order.
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		sb.WriteString(helpTitleStyle.Render("Voiceprep 🎙"))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render("Prepare recorded speech as a voice conversion dataset"))
		sb.WriteString("\n")

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(fmt.Sprintf("%s --name=SPEAKER [stages] [flags] [<workspace>]", ctx.Model.Name))
		sb.WriteString("\n")

		if args := getArguments(ctx); len(args) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			for _, arg := range args {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(arg.name))
				if arg.help != "" {
					sb.WriteString("  ")
					sb.WriteString(arg.help)
				}
				sb.WriteString("\n")
			}
		}

		for _, section := range groupFlags(getFlags(ctx)) {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render(section.title + ":"))
			sb.WriteString("\n")
			for _, f := range section.flags {
				sb.WriteString("  ")
				sb.WriteString(helpFlagStyle.Render(f.flags))
				if f.help != "" {
					sb.WriteString("  ")
					sb.WriteString(f.help)
				}
				if f.defaultVal != "" {
					sb.WriteString(" ")
					sb.WriteString(helpDefaultStyle.Render("(default: " + f.defaultVal + ")"))
				}
				sb.WriteString("\n")
			}
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
	group      string
}

type section struct {
	title string
	flags []flag
}

func getArguments(ctx *kong.Context) []argument {
	var args []argument
	for _, arg := range ctx.Model.Node.Positional {
		args = append(args, argument{name: arg.Summary(), help: arg.Help})
	}
	return args
}

func getFlags(ctx *kong.Context) []flag {
	flags := []flag{{
		flags: "-h, --help",
		help:  "Show context-sensitive help.",
		group: generalSection,
	}}

	for _, f := range ctx.Model.Node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		flagStr := fmt.Sprintf("--%s", f.Name)
		if f.Short != 0 {
			flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
		}
		if !f.IsBool() {
			flagStr += "=" + f.FormatPlaceHolder()
		}

		group := generalSection
		if f.Group != nil && f.Group.Title != "" {
			group = f.Group.Title
		}

		defaultVal := ""
		if !f.IsBool() && f.Default != "" {
			defaultVal = f.Default
		}

		flags = append(flags, flag{
			flags:      flagStr,
			help:       f.Help,
			defaultVal: defaultVal,
			group:      group,
		})
	}

	return flags
}

// groupFlags splits flags into sections in first-seen order, general flags last
func groupFlags(flags []flag) []section {
	var sections []section
	index := map[string]int{}
	for _, f := range flags {
		if f.group == generalSection {
			continue
		}
		i, ok := index[f.group]
		if !ok {
			i = len(sections)
			index[f.group] = i
			sections = append(sections, section{title: f.group})
		}
		sections[i].flags = append(sections[i].flags, f)
	}

	general := section{title: generalSection}
	for _, f := range flags {
		if f.group == generalSection {
			general.flags = append(general.flags, f)
		}
	}
	return append(sections, general)
}
