package container

import (
	"github.com/mohitkumar/agentflow/analytics"
	"github.com/mohitkumar/agentflow/cache"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/executor"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/orchestrator"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/persistence/memory"
	rd "github.com/mohitkumar/agentflow/persistence/redis"
)

type DIContiner struct {
	initialized     bool
	metadataStorage metadata.MetadataStorage
	metadataService metadata.MetadataService
	ledger          persistence.Ledger
	collector       analytics.StepCollector
	runCache        *cache.RunCache
	engine          *executor.Engine
	orchestrator    *orchestrator.SystemOrchestrator
}

func (p *DIContiner) setInitialized() {
	p.initialized = true
}

func NewDiContainer() *DIContiner {
	return &DIContiner{
		initialized: false,
	}
}

func (d *DIContiner) Init(conf config.Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}

	switch conf.StorageType {
	case config.STORAGE_TYPE_REDIS:
		d.metadataStorage = rd.NewRedisMetadataStorage(conf.RedisConfig)
		d.ledger = rd.NewRedisLedger(conf.RedisConfig)
	case config.STORAGE_TYPE_INMEM:
		d.metadataStorage = memory.NewInmemMetadataStorage()
		d.ledger = memory.NewInmemLedger()
	}

	collector, err := analytics.NewDataCollector(conf.AnalyticsConfig)
	if err != nil {
		return err
	}
	d.collector = collector
	d.runCache = cache.NewRunCache()
	d.metadataService = metadata.NewMetadataService(d.metadataStorage, conf.LinearDependencies)
	d.engine = executor.NewEngine(d.metadataService, d.ledger, d.runCache, d.collector, executor.RunOptions{
		MaxParallelism: conf.MaxParallelism,
		Retry:          conf.RetryPolicy,
		StepTimeout:    conf.StepTimeout,
	})
	d.orchestrator = orchestrator.New(d.metadataService, d.engine)
	d.setInitialized()
	return nil
}

func (d *DIContiner) GetMetadataService() metadata.MetadataService {
	if !d.initialized {
		panic("container not initalized")
	}
	return d.metadataService
}

func (d *DIContiner) GetLedger() persistence.Ledger {
	if !d.initialized {
		panic("container not initalized")
	}
	return d.ledger
}

func (d *DIContiner) GetEngine() *executor.Engine {
	if !d.initialized {
		panic("container not initalized")
	}
	return d.engine
}

func (d *DIContiner) GetOrchestrator() *orchestrator.SystemOrchestrator {
	if !d.initialized {
		panic("container not initalized")
	}
	return d.orchestrator
}
