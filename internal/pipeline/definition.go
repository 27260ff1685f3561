package pipeline

import (
	"github.com/jonboulle/clockwork"

	"github.com/shaiso/spaicer/internal/domain"
	"github.com/shaiso/spaicer/internal/engine"
	"github.com/shaiso/spaicer/internal/steps"
)

// Name — имя pipeline.
const Name = "spaicer_demo_dag"

// ID шагов pipeline.
const (
	StepFetch   = "fetch_data"
	StepBranch  = "fetch_success"
	StepAlert   = "alert"
	StepProcess = "process_data_with_ai_module"
	StepForward = "forward_results"
)

// Endpoints по умолчанию.
const (
	DefaultSourceURL  = "https://philipp.app.dezem.io/spaicer-data"
	DefaultModuleURL  = "https://philipp.app.dezem.io/spaicer-module"
	DefaultResultsURL = "https://philipp.app.dezem.io/spaicer-results"
)

// Definition возвращает описание pipeline:
//
//	fetch_data → fetch_success → process_data_with_ai_module → forward_results
//	                           ↘ alert
func Definition() *domain.PipelineSpec {
	return &domain.PipelineSpec{
		Name:        Name,
		Description: "fetch sensor data, run it through the AI module and forward the results",
		Steps: []domain.StepDef{
			{ID: StepFetch, Name: "Fetch data", Type: engine.StepTypeFetch, Phase: domain.PhaseFetching},
			{ID: StepBranch, Name: "Check fetch", Type: engine.StepTypeBranch, Phase: domain.PhaseBranching, DependsOn: []string{StepFetch}},
			{ID: StepAlert, Name: "Alert", Type: engine.StepTypeAlert, Phase: domain.PhaseAlerting, DependsOn: []string{StepBranch}},
			{ID: StepProcess, Name: "Process with AI module", Type: engine.StepTypeInference, Phase: domain.PhaseProcessing, DependsOn: []string{StepBranch}},
			{ID: StepForward, Name: "Forward results", Type: engine.StepTypeForward, Phase: domain.PhaseForwarding, DependsOn: []string{StepProcess}},
		},
	}
}

// StepsConfig — параметры реализаций шагов.
type StepsConfig struct {
	SourceURL  string
	ModuleURL  string
	ResultsURL string

	// Client — общий HTTP клиент всех шагов.
	Client steps.Client

	// Fault — инжектор сбоев для fetch.
	Fault steps.FaultInjector

	// Clock — часы для инжектора сбоев.
	Clock clockwork.Clock
}

// NewRegistry создаёт реестр с реализациями всех шагов pipeline.
func NewRegistry(cfg StepsConfig) *steps.Registry {
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}
	if cfg.ModuleURL == "" {
		cfg.ModuleURL = DefaultModuleURL
	}
	if cfg.ResultsURL == "" {
		cfg.ResultsURL = DefaultResultsURL
	}
	if cfg.Client == nil {
		cfg.Client = steps.NewHTTPClient(steps.DefaultHTTPTimeout)
	}

	// Конфигурация статична и заведомо валидна
	branch, err := steps.NewBranchStep(steps.BranchConfig{
		Sources:   []string{StepFetch},
		OnSuccess: StepProcess,
		OnFailure: StepAlert,
	})
	if err != nil {
		panic(err)
	}

	registry := steps.NewRegistry()
	registry.Register(StepFetch, steps.NewFetchStep(steps.FetchConfig{
		URL:    cfg.SourceURL,
		Client: cfg.Client,
		Fault:  cfg.Fault,
		Clock:  cfg.Clock,
	}))
	registry.Register(StepBranch, branch)
	registry.Register(StepAlert, steps.NewAlertStep(""))
	registry.Register(StepProcess, steps.NewInferenceStep(steps.InferenceConfig{
		URL:    cfg.ModuleURL,
		Source: StepFetch,
		Client: cfg.Client,
	}))
	registry.Register(StepForward, steps.NewForwardStep(steps.ForwardConfig{
		URL:    cfg.ResultsURL,
		Source: StepProcess,
		Client: cfg.Client,
	}))

	return registry
}
