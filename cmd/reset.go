package cmd

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HermYeh/face-attendance/internal/config"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase all attendance data, enrollment photos and trained embeddings",
	Long: `Reset clears the evidence photo directory, the enrollment dataset, the
trained embedding store and the attendance database. The system starts
from a clean slate on the next run. This cannot be undone.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Bool("force", false, "Skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		fmt.Println("This permanently deletes:")
		fmt.Printf("  - evidence photos under %s\n", cfg.Attendance.EvidenceDir)
		fmt.Printf("  - enrollment photos under %s\n", cfg.Recognition.DatasetDir)
		fmt.Printf("  - the embedding store %s\n", cfg.Recognition.EmbeddingStorePath)
		fmt.Printf("  - the attendance database %s\n", cfg.Attendance.DatabasePath)
		fmt.Print("Type 'yes' to continue: ")

		line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.TrimSpace(line) != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	for _, dir := range []string{cfg.Attendance.EvidenceDir, cfg.Recognition.DatasetDir} {
		n, err := clearDir(dir)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %s (%d files)\n", dir, n)
	}

	// The database sidecars must go with it, or SQLite replays stale state
	// into a fresh file.
	files := []string{cfg.Recognition.EmbeddingStorePath, cfg.Attendance.DatabasePath}
	for _, suffix := range []string{"-journal", "-wal", "-shm"} {
		files = append(files, cfg.Attendance.DatabasePath+suffix)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
		fmt.Printf("Deleted %s\n", f)
	}

	fmt.Println("Reset complete")
	return nil
}

// clearDir removes the contents of dir, keeping the directory itself.
// Returns the number of files removed; a missing directory counts as empty.
func clearDir(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return 0, fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return count, nil
}
