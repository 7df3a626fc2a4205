package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"honeypot/internal/analytics"
	"honeypot/internal/classifier"
	"honeypot/internal/config"
	"honeypot/internal/crypto"
	"honeypot/internal/gemini"
	"honeypot/internal/llm"
	"honeypot/internal/models"
	"honeypot/internal/reporter"
	"honeypot/internal/repository"
	"honeypot/internal/service"
	"honeypot/internal/session"
)

// app is the fully wired service plus what must be closed on shutdown.
type app struct {
	honeypot *service.Honeypot
	notifier *reporter.TelegramNotifier
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newClassifier(cfg *config.Config) (*classifier.Classifier, error) {
	if cfg.Classifier.LexiconPath == "" {
		return classifier.Default(), nil
	}
	lex, err := classifier.LoadLexicon(cfg.Classifier.LexiconPath)
	if err != nil {
		return nil, err
	}
	return classifier.New(lex)
}

func openDatabase(cfg *config.Config, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := repository.Open(cfg.Database.Type, cfg.Database.URL, logger)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db, cfg.Database.Type, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	cls, err := newClassifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon: %w", err)
	}

	store := session.NewStore(session.Options{
		TTL:      cfg.Session.TTL,
		Capacity: cfg.Session.Capacity,
		OnEvict: func(id string, s models.Session) {
			logger.Debug("Session evicted",
				zap.String("session_id", id),
				zap.Int("message_count", s.MessageCount))
		},
	})

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	var codec repository.TextCodec
	if cfg.Crypto.Passphrase != "" {
		cipher, err := crypto.NewTextCipher(cfg.Crypto.Passphrase, cfg.Crypto.Salt)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to init message cipher: %w", err)
		}
		codec = cipher
		logger.Info("Message text encryption enabled")
	}
	repo := repository.NewSessionRepository(db, codec, logger)

	var generator service.ReplyGenerator
	if len(cfg.Providers) > 0 {
		failover, err := llm.NewFailover(llm.FailoverConfig{
			Providers:   cfg.Providers,
			MaxFailures: cfg.MaxFailuresBeforeSwitch,
		}, logger)
		if err != nil {
			logger.Warn("No reply provider available, using scripted replies", zap.Error(err))
		} else {
			generator = failover
			a.closers = append(a.closers, failover.Close)
			logger.Info("Reply providers initialized",
				zap.Any("model", failover.GetModelInfo()["model"]),
				zap.Int("provider_count", len(cfg.Providers)))
		}
	} else {
		logger.Info("No reply providers configured, using scripted replies")
	}

	a.notifier, err = reporter.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, store.Get, logger)
	if err != nil {
		logger.Warn("Telegram notifier unavailable", zap.Error(err))
		a.notifier = nil
	}
	var notifier reporter.Notifier
	if a.notifier != nil {
		notifier = a.notifier
	}

	fileSink := reporter.NewFileSink(cfg.Reporter.FallbackFile)
	var dispatcher *reporter.Dispatcher
	if cfg.Reporter.CallbackURL != "" {
		sender := reporter.NewHTTPSender(reporter.HTTPConfig{
			URL:        cfg.Reporter.CallbackURL,
			APIKey:     cfg.Reporter.APIKey,
			Timeout:    cfg.Reporter.Timeout,
			MaxRetries: cfg.Reporter.MaxRetries,
		}, logger)
		dispatcher = reporter.NewDispatcher(sender, fileSink, notifier, logger)
	} else {
		logger.Info("No callback url configured, reports go to the local file",
			zap.String("path", fileSink.Path()))
		dispatcher = reporter.NewDispatcher(fileSink, nil, notifier, logger)
	}

	a.honeypot = service.NewHoneypot(service.Dependencies{
		Store:      store,
		Classifier: cls,
		Generator:  generator,
		Reporter:   dispatcher,
		Repository: repo,
		Events:     analytics.NewCSVSink(cfg.Analytics.CSVPath),
	}, service.Config{
		SystemPrompt:    gemini.SystemInstruction,
		GenerateTimeout: cfg.GenerateTimeout,
		ReportTimeout:   cfg.Reporter.Timeout * time.Duration(cfg.Reporter.MaxRetries+1),
	}, logger)

	return a, nil
}
