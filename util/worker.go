package util

import (
	"sync"

	"github.com/mohitkumar/agentflow/logger"
	"go.uber.org/zap"
)

type Job any

// WorkerPool runs handler for every job sent to it on a fixed number of
// goroutines. Jobs are buffered up to capacity.
type WorkerPool struct {
	name    string
	size    int
	stop    chan struct{}
	once    sync.Once
	wg      *sync.WaitGroup
	handler func(Job) error
	jobChan chan Job
}

func NewWorkerPool(name string, size int, wg *sync.WaitGroup, handler func(Job) error, capacity int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if capacity < 0 {
		capacity = 0
	}
	return &WorkerPool{
		name:    name,
		size:    size,
		stop:    make(chan struct{}),
		wg:      wg,
		handler: handler,
		jobChan: make(chan Job, capacity),
	}
}

func (w *WorkerPool) Start() {
	for i := 0; i < w.size; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			for {
				select {
				case job := <-w.jobChan:
					err := w.handler(job)
					if err != nil {
						logger.Error("error in executing job in worker", zap.String("worker", w.name), zap.Int("id", id), zap.Error(err))
					}
				case <-w.stop:
					logger.Debug("stopping worker", zap.String("worker", w.name), zap.Int("id", id))
					return
				}
			}
		}(i)
	}
}

func (w *WorkerPool) Sender() chan<- Job {
	return w.jobChan
}

func (w *WorkerPool) Size() int {
	return w.size
}

// Stop signals every worker to exit. Jobs still buffered are dropped.
func (w *WorkerPool) Stop() {
	w.once.Do(func() {
		close(w.stop)
	})
}
