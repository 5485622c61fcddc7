package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cutekitek/rankode-grader/internal/files"
	"github.com/cutekitek/rankode-grader/internal/rabbitmq"
	"github.com/cutekitek/rankode-grader/internal/repository/models"
	"github.com/cutekitek/rankode-grader/internal/task"
	"github.com/cutekitek/rankode-grader/internal/worker"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func queueConfig() rabbitmq.RabbitMqHandlerConfig {
	return rabbitmq.RabbitMqHandlerConfig{
		Login:         cfg.RabbitMQUser,
		Password:      cfg.RabbitMQPassword,
		Host:          cfg.RabbitMQHost,
		Port:          cfg.RabbitMQPort,
		WorkersCount:  cfg.WorkersCount,
		JobsPerSecond: cfg.JobsPerSecond,
	}
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Grade submissions from the queue",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireQueue(); err != nil {
		return err
	}
	tasks, err := task.LoadDir(cfg.TasksPath)
	if err != nil {
		return err
	}
	r, cleanup, err := newRunner(cfg.WorkersCount)
	if err != nil {
		return err
	}
	defer cleanup()

	fileStorage, err := files.NewFileStorage(files.Config{
		Url:      cfg.MinIOHost,
		Login:    cfg.MinIOLogin,
		Password: cfg.MinIOPassword,
		Bucket:   cfg.MinIOBucket,
		Secure:   cfg.MinIOSecure,
	})
	if err != nil {
		return err
	}
	listener, err := rabbitmq.NewRabbitMQHandler(queueConfig(), worker.NewWorker(newGrader(r), tasks, fileStorage))
	if err != nil {
		return err
	}
	if err := listener.Start(); err != nil {
		return err
	}
	slog.Info("worker started", "tasks", len(tasks), "workers", cfg.WorkersCount, "runner", cfg.Runner)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	listener.Close()
	return nil
}

var (
	enqueueTask   string
	enqueuePrefix string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Publish a grade request for a submission stored in the bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &models.GradeRequest{Id: uuid.NewString(), Task: enqueueTask, Prefix: enqueuePrefix}
		if err := rabbitmq.Enqueue(cmd.Context(), queueConfig(), req); err != nil {
			return err
		}
		cmd.Println(req.Id)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueTask, "task", "", "task name")
	enqueueCmd.Flags().StringVar(&enqueuePrefix, "prefix", "", "object prefix of the submission")
	enqueueCmd.MarkFlagRequired("task")
	enqueueCmd.MarkFlagRequired("prefix")
}
