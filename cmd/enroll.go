package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/HermYeh/face-attendance/internal/attendance"
	"github.com/HermYeh/face-attendance/internal/capture"
	"github.com/HermYeh/face-attendance/internal/config"
	"github.com/HermYeh/face-attendance/internal/evidence"
	"github.com/HermYeh/face-attendance/internal/recognition"
	"github.com/HermYeh/face-attendance/internal/tracker"
	"github.com/HermYeh/face-attendance/internal/training"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name>",
	Short: "Capture enrollment photos for a person from the camera",
	Long: `Enroll runs the camera capture loop until it has collected enough face
photos of the person in front of it, stores them in the dataset, retrains
the embedding store and registers the person as an employee.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int("captures", training.DefaultCaptures, "Number of photos to capture")
	enrollCmd.Flags().String("camera-url", "", "Camera snapshot URL (overrides CAMERA_URL)")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	if url := mustGetString(cmd, "camera-url"); url != "" {
		cfg.Camera.SnapshotURL = url
	}

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

	matcher := recognition.NewEmbeddingMatcher(embedder, store, cfg.Recognition.RecognitionThreshold)
	cache := recognition.NewCache(matcher, cfg.Recognition.EmbeddingCacheSize)
	trk := tracker.New(cfg.Tracking)

	evidenceWriter := evidence.NewWriter(cfg.Attendance.EvidenceDir)
	defer evidenceWriter.Close()

	source := capture.NewSnapshotSource(cfg.Camera.SnapshotURL)
	defer source.Close()

	loop := capture.New(cfg, source, embedder, cache, trk, ledger, evidenceWriter, nil)

	dataset := training.NewDataset(cfg.Recognition.DatasetDir)
	trainer := training.NewTrainer(dataset, embedder, store, cache, loop)
	loop.AttachEnroller(trainer)

	enr, err := trainer.StartEnrollment(name, mustGetInt(cmd, "captures"))
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopCtx, stopLoop := context.WithCancel(sigCtx)
	defer stopLoop()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()

	fmt.Printf("Capturing %d photos of %s. Look at the camera and move your head slowly.\n", enr.Target, name)

	bar := progressbar.NewOptions(enr.Target,
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
	)

	sessionDone := make(chan struct{})
	go func() { enr.Wait(); close(sessionDone) }()

	poll := time.NewTicker(200 * time.Millisecond)
	defer poll.Stop()

capturing:
	for {
		select {
		case <-sigCtx.Done():
			enr.Cancel()
			<-loopDone
			fmt.Println()
			return fmt.Errorf("enrollment interrupted after %d photos", enr.Snapshot().Captured)
		case <-sessionDone:
			_ = bar.Set(enr.Snapshot().Captured)
			break capturing
		case <-poll.C:
			_ = bar.Set(enr.Snapshot().Captured)
		}
	}
	fmt.Println()

	// The photos are on disk; the camera is no longer needed.
	stopLoop()
	<-loopDone

	fmt.Printf("Captured %d photos of %s, training...\n", enr.Snapshot().Captured, name)

	job, err := trainer.Start(sigCtx)
	if err != nil {
		return err
	}
	final := watchTraining(job)
	switch final.Status {
	case training.JobStatusCompleted:
	case training.JobStatusCancelled:
		return fmt.Errorf("training cancelled")
	default:
		return fmt.Errorf("training failed: %s", final.Error)
	}

	registered, err := ledger.AddEmployee(attendance.Employee{
		Name:       name,
		Department: "Face Recognition",
		Position:   "Employee",
	})
	if err != nil {
		return fmt.Errorf("registering employee: %w", err)
	}
	if registered {
		fmt.Printf("Registered %s as a new employee\n", name)
	}

	fmt.Printf("%s enrolled: %d photos trained, %d people known\n", name, final.ProcessedImages, len(store.Names()))
	return nil
}
