package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aletheia-codex/backend/internal/metrics"
	"github.com/aletheia-codex/backend/internal/queue"
	"github.com/aletheia-codex/backend/internal/setup"
	"github.com/aletheia-codex/backend/internal/util"
	"github.com/aletheia-codex/backend/pkg/logger"
	"github.com/aletheia-codex/backend/pkg/logger/console"

	"github.com/labstack/echo/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvString("LOG_FORMAT", "text") == "json",
	})
	logger.Init(consoleLogger)

	deps, err := setup.Init(ctx)
	if err != nil {
		logger.Fatal("[Queue] Failed to initialize dependencies", "err", err)
	}
	defer deps.Close()

	aiClient, err := deps.AIClient(ctx)
	if err != nil {
		logger.Fatal("[Queue] Could not create AI client", "err", err)
	}
	if err := aiClient.LoadModel(ctx); err != nil {
		logger.Warn("[Queue] Failed to preload model", "provider", aiClient.Provider(), "err", err)
	}

	worker := queue.NewWorker(queue.NewWorkerParams{
		Documents: deps.Reviews,
		Storage:   deps.Storage,
		Pipeline:  deps.Pipeline(aiClient),
		Approved:  deps.Queue,
		Graph:     deps.Graph,
		Locks:     deps.Locks,
		Cache:     deps.Cache,
	})

	if port := util.GetEnv("METRICS_PORT"); port != "" {
		go serveMetrics(port)
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Queue] Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("[Queue] Failed to set up queues", "err", err)
	}

	// A single consumer channel with a shared prefetch lets every worker
	// process hold at most WORKER_PREFETCH messages across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Queue] Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(int(util.GetEnvNumeric("WORKER_PREFETCH", 1)), 0, true); err != nil {
		logger.Fatal("[Queue] Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			msgs, err := consumerCh.Consume(
				qName,
				fmt.Sprintf("%s_consumer", qName),
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("[Queue] Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("[Queue] Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("[Queue] Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	logger.Info("[Queue] Listening for messages", "queues", queue.Queues)

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("[Queue] Stopping message processor")
				return
			case qm := <-messageChan:
				start := time.Now()
				logger.Info("[Queue] Received message", "queue", qm.queueName)

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if err := worker.Handle(ctx, qm.queueName, qm.msg.Body); err != nil {
					logger.Error("[Queue] Error processing message", "queue", qm.queueName, "err", err)
					queue.HandleProcessingError(ctx, ch, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("[Queue] Failed to ack message", "err", err)
					}
					logger.Info("[Queue] Message processed",
						"queue", qm.queueName,
						"duration", time.Since(start).Round(time.Millisecond),
					)
				}

				usage := aiClient.GetMetrics()
				logger.Info("[Queue] AI usage",
					"provider", aiClient.Provider(),
					"requests", usage.Requests,
					"input_tokens", usage.InputTokens,
					"output_tokens", usage.OutputTokens,
					"duration", (time.Duration(usage.DurationMs) * time.Millisecond).Round(time.Millisecond),
				)
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("[Queue] Shutdown signal received, exiting...")
}

func serveMetrics(port string) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", metrics.Handler())
	logger.Info("[Queue] Serving metrics", "port", port)
	if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
		logger.Error("[Queue] Metrics server stopped", "err", err)
	}
}
