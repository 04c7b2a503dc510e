package workerpool

import (
	"errors"
	"runtime"
	"sync"
)

var ErrRoomFull = errors.New("workerpool: room buffer is full")

type WorkerPool struct {
	config    Config
	taskQueue chan Task
	closeOnce sync.Once
	workers   sync.WaitGroup
}

type Config struct {
	WorkerCount  int
	GlobalBuffer int
}

// Room groups tasks whose errors are collected together.
type Room struct {
	bufferSize int
	resultChan chan error
	wg         sync.WaitGroup
	wp         *WorkerPool
}

type Task struct {
	run  func() error
	room *Room
}

func NewWorkerPool(config Config) *WorkerPool {
	if config.WorkerCount < 1 {
		config.WorkerCount = runtime.NumCPU()
	}

	// A small queue keeps producers from buffering large payloads ahead of
	// the workers.
	if config.GlobalBuffer < 1 {
		config.GlobalBuffer = config.WorkerCount
	}

	wp := &WorkerPool{
		config:    config,
		taskQueue: make(chan Task, config.GlobalBuffer),
	}

	wp.workers.Add(config.WorkerCount)
	for i := 0; i < config.WorkerCount; i++ {
		go wp.Worker()
	}

	return wp
}

func (wp *WorkerPool) Worker() {
	defer wp.workers.Done()
	for t := range wp.taskQueue {
		t.room.resultChan <- t.run()
		t.room.wg.Done()
	}
}

// Close stops the workers after queued tasks finish.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.taskQueue)
		wp.workers.Wait()
	})
}

func (wp *WorkerPool) CreateRoom(size int) *Room {
	return &Room{
		bufferSize: size,
		resultChan: make(chan error, size),
		wp:         wp,
	}
}

// NewTaskWaitForFreeSlot blocks until the global queue accepts the job.
func (ro *Room) NewTaskWaitForFreeSlot(job func() error) {
	ro.wg.Add(1)
	ro.wp.taskQueue <- Task{run: job, room: ro}
}

func (ro *Room) NewTask(job func() error) error {
	if len(ro.resultChan) == cap(ro.resultChan) {
		return ErrRoomFull
	}
	ro.NewTaskWaitForFreeSlot(job)
	return nil
}

// Collect waits for every task of the room and joins their errors.
func (ro *Room) Collect() error {
	go ro.WaitAndClose()

	var errs []error
	for err := range ro.resultChan {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ro *Room) WaitAndClose() {
	ro.wg.Wait()
	close(ro.resultChan)
}
