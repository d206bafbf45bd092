package main

import (
	"context"
	"testing"

	"mailroom/internal/testsupport"
	"mailroom/internal/workflow"
)

type fakeConfigurator struct {
	set        workflow.StageSet
	configured bool
}

func (f *fakeConfigurator) ConfigureStages(set workflow.StageSet) {
	f.set = set
	f.configured = true
}

func TestRegisterStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	configurator := &fakeConfigurator{}
	registerStages(configurator, cfg, nil, nil)

	if !configurator.configured {
		t.Fatal("expected stages to be configured")
	}
	if configurator.set.Classifier == nil {
		t.Error("classifier stage not registered")
	}
	if configurator.set.Filer == nil {
		t.Error("filer stage not registered")
	}
	ctx := context.Background()
	if health := configurator.set.Classifier.HealthCheck(ctx); health.Name != "classify" {
		t.Errorf("unexpected classifier stage name %q", health.Name)
	}
	if health := configurator.set.Filer.HealthCheck(ctx); health.Name != "file" {
		t.Errorf("unexpected filer stage name %q", health.Name)
	}
}

func TestRegisterStagesIgnoresNilConfig(t *testing.T) {
	configurator := &fakeConfigurator{}
	registerStages(configurator, nil, nil, nil)
	if configurator.configured {
		t.Fatal("expected no stage configuration without config")
	}
}

func TestBuildDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ruleStore := testsupport.MustOpenRules(t, cfg)

	manager := workflow.NewManager(cfg, store, nil)
	registerStages(manager, cfg, store, nil)

	d, err := buildDaemon(cfg, store, ruleStore, nil, manager)
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	if d == nil {
		t.Fatal("expected daemon instance")
	}
}
