package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/HermYeh/face-attendance/internal/attendance"
	"github.com/HermYeh/face-attendance/internal/config"
	"github.com/HermYeh/face-attendance/internal/recognition"
	"github.com/HermYeh/face-attendance/internal/training"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Rebuild the embedding store from the enrollment dataset",
	Long: `Train reads every enrollment photo under the dataset directory,
computes face embeddings through the embedding backend and rebuilds the
persisted embedding store.`,
	RunE: runTrain,
}

var syncCmd = &cobra.Command{
	Use:   "sync-employees",
	Short: "Register every enrolled dataset person as an employee",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(trainCmd, syncCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}

	embedder := recognition.NewEmbedClient(cfg.Recognition.EmbeddingURL)
	if err := embedder.Ping(cmd.Context()); err != nil {
		return fmt.Errorf("embedding backend check failed: %w", err)
	}

	store := recognition.NewEmbeddingStore(cfg.Recognition.EmbeddingStorePath)
	if err := store.Load(); err != nil {
		return fmt.Errorf("loading embedding store: %w", err)
	}

	dataset := training.NewDataset(cfg.Recognition.DatasetDir)
	trainer := training.NewTrainer(dataset, embedder, store, nil, nil)

	job, err := trainer.Start(cmd.Context())
	if err != nil {
		return err
	}

	final := watchTraining(job)
	switch final.Status {
	case training.JobStatusCompleted:
		fmt.Printf("Training completed: %d images, %d people known\n", final.ProcessedImages, len(store.Names()))
		return nil
	case training.JobStatusCancelled:
		return fmt.Errorf("training cancelled")
	default:
		return fmt.Errorf("training failed: %s", final.Error)
	}
}

// watchTraining renders a job's progress events as a progress bar, blocks
// until the job finishes and returns its final snapshot.
func watchTraining(job *training.Job) training.Job {
	events := job.AddListener()
	defer job.RemoveListener(events)

	go func() {
		var bar *progressbar.ProgressBar
		for event := range events {
			if event.Type != "progress" {
				continue
			}
			snapshot, ok := event.Data.(training.Job)
			if !ok {
				continue
			}
			if bar == nil {
				bar = progressbar.NewOptions(snapshot.TotalImages,
					progressbar.OptionSetDescription("Training"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("photos"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(snapshot.ProcessedImages)
		}
	}()

	job.Wait()
	fmt.Println()
	return job.Snapshot()
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}

	ledger, err := attendance.Open(cfg.Attendance.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening attendance database: %w", err)
	}
	defer ledger.Close()

	dataset := training.NewDataset(cfg.Recognition.DatasetDir)
	trainer := training.NewTrainer(dataset, nil, nil, nil, nil)

	added, err := trainer.SyncEmployees(ledger)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %d new employees from the dataset\n", added)
	return nil
}
