package main

import (
	"log/slog"

	"mailroom/internal/classify"
	"mailroom/internal/config"
	"mailroom/internal/daemon"
	"mailroom/internal/filing"
	"mailroom/internal/ingest"
	"mailroom/internal/queue"
	"mailroom/internal/rules"
	"mailroom/internal/workflow"
)

type stageConfigurator interface {
	ConfigureStages(workflow.StageSet)
}

func registerStages(reg stageConfigurator, cfg *config.Config, store *queue.Store, logger *slog.Logger) {
	if reg == nil || cfg == nil {
		return
	}

	reg.ConfigureStages(workflow.StageSet{
		Classifier: classify.NewClassifier(cfg, store, logger),
		Filer:      filing.NewFiler(cfg, store, logger),
	})
}

func buildDaemon(cfg *config.Config, store *queue.Store, ruleStore *rules.Store, logger *slog.Logger, wf *workflow.Manager) (*daemon.Daemon, error) {
	handler := ingest.NewHandler(cfg, ruleStore, store, logger)
	return daemon.New(cfg, store, ruleStore, logger, wf, handler)
}
