package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HermYeh/face-attendance/internal/attendance"
	"github.com/HermYeh/face-attendance/internal/capture"
	"github.com/HermYeh/face-attendance/internal/config"
	"github.com/HermYeh/face-attendance/internal/recognition"
	"github.com/HermYeh/face-attendance/internal/training"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Check the camera, embedding backend, database and stores",
	Long: `Diagnose probes every external piece the system depends on: it fetches a
test frame from the camera, pings the embedding backend and runs detection
on the frame, and opens the attendance database, the embedding store and
the enrollment dataset. Exits non-zero when any check fails.`,
	RunE: runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	failures := 0
	fail := func(name string, err error) {
		failures++
		fmt.Printf("FAIL %-17s %v\n", name, err)
	}
	ok := func(name, detail string) {
		fmt.Printf("OK   %-17s %s\n", name, detail)
	}

	source := capture.NewSnapshotSource(cfg.Camera.SnapshotURL)
	defer source.Close()
	frame, err := source.ReadFrame(ctx)
	if err != nil {
		fail("camera", err)
	} else {
		w, h := frame.Bounds()
		ok("camera", fmt.Sprintf("%s (%dx%d)", cfg.Camera.SnapshotURL, w, h))
	}

	embedder := recognition.NewEmbedClient(cfg.Recognition.EmbeddingURL)
	if err := embedder.Ping(ctx); err != nil {
		fail("embedding backend", err)
	} else if frame == nil {
		ok("embedding backend", cfg.Recognition.EmbeddingURL)
	} else if detections, err := embedder.DetectFaces(ctx, frame.JPEG); err != nil {
		fail("face detection", err)
	} else {
		ok("embedding backend", fmt.Sprintf("%s, %d faces in test frame", cfg.Recognition.EmbeddingURL, len(detections)))
	}

	if ledger, err := attendance.Open(cfg.Attendance.DatabasePath); err != nil {
		fail("database", err)
	} else {
		if employees, err := ledger.Employees(); err != nil {
			fail("database", err)
		} else {
			ok("database", fmt.Sprintf("%s, %d employees", cfg.Attendance.DatabasePath, len(employees)))
		}
		ledger.Close()
	}

	store := recognition.NewEmbeddingStore(cfg.Recognition.EmbeddingStorePath)
	if err := store.Load(); err != nil {
		fail("embedding store", err)
	} else {
		ok("embedding store", fmt.Sprintf("%d embeddings, %d people", store.Count(), len(store.Names())))
	}

	dataset := training.NewDataset(cfg.Recognition.DatasetDir)
	if persons, err := dataset.Persons(); err != nil {
		fail("dataset", err)
	} else {
		photos := 0
		for _, p := range persons {
			photos += len(p.Images)
		}
		ok("dataset", fmt.Sprintf("%d people, %d photos", len(persons), photos))
	}

	if failures > 0 {
		return fmt.Errorf("%d checks failed", failures)
	}
	fmt.Println("All checks passed")
	return nil
}
