// Command remfs mounts a reMarkable tablet's on-disk store as a read-only
// FUSE (or, on darwin, loopback-NFS) filesystem.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	sourceDir  string
	configPath string
	backend    string
)

func init() {
	rootCmd.Flags().StringVar(&sourceDir, "source", "./xochitl", "Path to the reMarkable source store")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to an HCL config file (default: $HOME/.config/remfs/remfs.hcl if present)")
	rootCmd.Flags().StringVar(&backend, "backend", defaultBackend(), "Mount backend: fuse or nfs")
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("remfs version %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

var rootCmd = &cobra.Command{
	Use:     "remfs <mountpoint>",
	Short:   "remfs projects a reMarkable tablet's store as a folder/page filesystem",
	Args:    cobra.ExactArgs(1),
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMount(cmd, args[0])
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
