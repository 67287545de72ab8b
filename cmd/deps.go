package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-dualcam/internal/deps"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Check for external dependencies",
	Long:  `Check whether the programs needed for the configured container format, and the optional helpers, are installed.`,
	Run: func(cmd *cobra.Command, args []string) {
		format := cfg.EncoderFormat()
		required, optional := deps.CheckAll(format, cfg.FFmpegPath)

		green := lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
		red := lipgloss.NewStyle().Foreground(lipgloss.Color("#E95420"))
		gray := lipgloss.NewStyle().Foreground(lipgloss.Color("#9A9EA0"))
		cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("#00BCD4"))
		bold := lipgloss.NewStyle().Bold(true)

		fmt.Println()
		fmt.Printf("%s %s\n\n", bold.Render("Container format:"), cyan.Render(string(format)+" ("+format.Extension()+")"))

		fmt.Println(bold.Render("Required Dependencies:"))
		fmt.Println()
		if len(required) == 0 {
			fmt.Printf("  %s\n\n", gray.Render("None: this format is written natively"))
		}

		allRequiredOk := true
		for _, r := range required {
			status := green.Render("✓")
			if !r.Available {
				status = red.Render("✗")
				allRequiredOk = false
			}
			printDep(status, r, bold, gray)
		}

		fmt.Println(bold.Render("Optional Dependencies:"))
		fmt.Println()
		for _, r := range optional {
			status := green.Render("✓")
			if !r.Available {
				status = gray.Render("○")
			}
			printDep(status, r, bold, gray)
		}

		if allRequiredOk {
			fmt.Println(green.Render("All required dependencies are installed!"))
		} else {
			fmt.Println(red.Render("Some required dependencies are missing."))
			fmt.Println("Install them or switch the format to raw in the config file.")
		}
		fmt.Println()
	},
}

func printDep(status string, r deps.CheckResult, bold, gray lipgloss.Style) {
	fmt.Printf("  %s %s\n", status, bold.Render(r.Dependency.Name))
	fmt.Printf("    %s\n", gray.Render(r.Dependency.Description))
	if r.Available {
		fmt.Printf("    Path: %s\n", r.Path)
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(depsCmd)
}
