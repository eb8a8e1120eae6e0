package main

import (
	"barberline/internal/notifier"
	"barberline/pkg/app"
	"barberline/pkg/config"
	"barberline/pkg/kafka"
	kafka_config "barberline/pkg/kafka/config"
	kafka_middleware "barberline/pkg/kafka/middleware"
	"barberline/pkg/logger"
)

const (
	ServiceName = "notifier"

	confirmationsGroup = "barberline-confirmations"
	callLogGroup       = "barberline-call-log"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetTwilio()
	defer cfg.GracefulShutdown()

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log.Info)

	var consumers []*kafka.Consumer

	if cfg.Client.Twilio != nil && cfg.TwilioPhoneNumber != "" {
		sms := notifier.NewTwilioSMS(cfg.Client.Twilio, cfg.TwilioPhoneNumber)
		confirmations := notifier.NewConfirmations(sms, cfg.Log)
		consumers = append(consumers, newConsumer(kcfg, confirmationsGroup, confirmations.Handle, cfg.Log))
	} else {
		cfg.Log.Warn("Twilio credentials missing, booking confirmations disabled")
	}

	callLog, file, err := notifier.OpenCallLog(cfg.CallLogPath)
	if err != nil {
		cfg.Log.Fatal("Failed to open call log", "path", cfg.CallLogPath, "error", err)
	}
	defer file.Close()
	consumers = append(consumers, newConsumer(kcfg, callLogGroup, callLog.Handle, cfg.Log))

	runner := notifier.NewRunner(cfg.Log, consumers...)
	runner.Start()
	cfg.Log.Info("Notifier consuming", "topic", kcfg.EventsTopic, "consumers", len(consumers))

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, app.Options{Workers: []app.Worker{runner}})
	serverApp.Run()
}

func newConsumer(kcfg *kafka_config.Config, group string, handler kafka.MessageHandler, log *logger.Logger) *kafka.Consumer {
	c, err := kafka.NewConsumer(kcfg, kcfg.EventsTopic, group, handler, log)
	if err != nil {
		log.Fatal("Failed to create kafka consumer", "group", group, "error", err)
	}
	if kcfg.EnableMiddleware {
		c.Use(kafka_middleware.LoggingConsumerMiddleware(log))
		c.Use(kafka_middleware.MetricsConsumerMiddleware())
	}
	return c
}
