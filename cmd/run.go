package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/HermYeh/face-attendance/internal/attendance"
	"github.com/HermYeh/face-attendance/internal/capture"
	"github.com/HermYeh/face-attendance/internal/config"
	"github.com/HermYeh/face-attendance/internal/evidence"
	"github.com/HermYeh/face-attendance/internal/recognition"
	"github.com/HermYeh/face-attendance/internal/tracker"
	"github.com/HermYeh/face-attendance/internal/training"
	"github.com/HermYeh/face-attendance/internal/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the attendance system",
	Long: `Start the full attendance system: the camera capture loop, the
recognition pipeline and the web API. Stops cleanly on SIGINT/SIGTERM,
letting the in-flight frame finish and saving the embedding store.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("camera-url", "", "Camera snapshot URL (overrides CAMERA_URL)")
	runCmd.Flags().Bool("no-camera", false, "Serve the web API without a capture loop")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	if url := mustGetString(cmd, "camera-url"); url != "" {
		cfg.Camera.SnapshotURL = url
	}
	noCamera, _ := cmd.Flags().GetBool("no-camera")

	ledger, err := attendance.Open(cfg.Attendance.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening attendance database: %w", err)
	}
	defer ledger.Close()

	embedder := recognition.NewEmbedClient(cfg.Recognition.EmbeddingURL)
	if err := embedder.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("embedding backend check failed: %w", err)
	}

	store := recognition.NewEmbeddingStore(cfg.Recognition.EmbeddingStorePath)
	if err := store.Load(); err != nil {
		return fmt.Errorf("loading embedding store: %w", err)
	}
	fmt.Printf("Embedding store loaded: %d embeddings, %d people\n", store.Count(), len(store.Names()))

	matcher := recognition.NewEmbeddingMatcher(embedder, store, cfg.Recognition.RecognitionThreshold)
	cache := recognition.NewCache(matcher, cfg.Recognition.EmbeddingCacheSize)
	trk := tracker.New(cfg.Tracking)

	evidenceWriter := evidence.NewWriter(cfg.Attendance.EvidenceDir)
	defer evidenceWriter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan error, 1)
	var loop *capture.Loop
	if !noCamera {
		source := capture.NewSnapshotSource(cfg.Camera.SnapshotURL)
		defer source.Close()

		loop = capture.New(cfg, source, embedder, cache, trk, ledger, evidenceWriter, nil)
	}

	dataset := training.NewDataset(cfg.Recognition.DatasetDir)
	var gate training.CaptureGate
	if loop != nil {
		gate = loop
	}
	trainer := training.NewTrainer(dataset, embedder, store, cache, gate)

	if loop != nil {
		loop.AttachEnroller(trainer)
		go func() { loopDone <- loop.Run(ctx) }()
		fmt.Printf("Capture loop started (camera %s, %d fps target)\n", cfg.Camera.SnapshotURL, cfg.Camera.TargetFPS)
	} else {
		close(loopDone)
	}

	server := web.NewServer(cfg.Web, ledger, trk, trainer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		// Stop the capture loop first; its in-flight tick finishes.
		cancel()
		<-loopDone

		// A running training job is cancelled and joined, not abandoned.
		if job := trainer.Current(); job != nil {
			fmt.Println("Cancelling in-flight training...")
			job.Cancel()
			job.Wait()
		}

		if err := store.Save(); err != nil {
			fmt.Printf("Warning: failed to save embedding store: %v\n", err)
		} else {
			fmt.Println("Embedding store saved")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Attendance API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
