package commands

import (
	"runtime"

	"github.com/marmos91/dittovec/internal/cli/output"
	"github.com/spf13/cobra"
)

var versionShort bool

// versionInfo is the structured form printed with -o json|yaml.
type versionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Built     string `json:"built" yaml:"built"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the dittovec version, build information, and system details.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionShort {
			printer.Println(Version)
			return nil
		}

		info := versionInfo{
			Version:   Version,
			Commit:    Commit,
			Built:     Date,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		}
		if printer.Format() != output.FormatTable {
			return printer.Print(info)
		}
		return output.SimpleTable(printer.Writer(), [][2]string{
			{"Version", info.Version},
			{"Commit", info.Commit},
			{"Built", info.Built},
			{"Go version", info.GoVersion},
			{"OS/Arch", info.Platform},
		})
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show only version number")
}
