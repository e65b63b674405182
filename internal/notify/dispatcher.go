package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task фоновая задача уведомления
type Task func(ctx context.Context) error

type job struct {
	name string
	task Task
}

// Observer получает результат каждой задачи
type Observer func(name string, err error)

// Dispatcher выполняет уведомления в фоне после коммита бронирования.
// Очередь ограничена, при переполнении задача отбрасывается.
type Dispatcher struct {
	queue    chan job
	workers  int
	timeout  time.Duration
	logger   *zap.Logger
	observe  Observer
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewDispatcher создаёт диспетчер с workers обработчиками и очередью size
func NewDispatcher(workers, size int, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:    make(chan job, size),
		workers:  workers,
		timeout:  timeout,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// OnResult задаёт наблюдателя, вызывать до Start
func (d *Dispatcher) OnResult(observe Observer) {
	d.observe = observe
}

// Start запускает обработчики
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting notification dispatcher", zap.Int("workers", d.workers))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
}

// Stop дожидается завершения задач, уже взятых в работу, остальные отбрасывает
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		d.logger.Info("Stopping notification dispatcher")
		close(d.stopChan)
	})
	d.wg.Wait()
}

// Dispatch ставит задачу в очередь, false если очередь заполнена или диспетчер остановлен
func (d *Dispatcher) Dispatch(name string, task Task) bool {
	select {
	case <-d.stopChan:
		return false
	default:
	}

	select {
	case d.queue <- job{name: name, task: task}:
		return true
	default:
		d.logger.Warn("Notification queue full, dropping task", zap.String("task", name))
		return false
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case j := <-d.queue:
			d.execute(ctx, j)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, j job) {
	taskCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Notification task panicked", zap.String("task", j.name), zap.Any("panic", r))
		}
	}()

	err := j.task(taskCtx)
	if err != nil {
		d.logger.Warn("Notification task failed", zap.String("task", j.name), zap.Error(err))
	}
	if d.observe != nil {
		d.observe(j.name, err)
	}
}
