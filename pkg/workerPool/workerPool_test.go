package workerpool

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomCollectsAllTasks(t *testing.T) {
	wp := NewWorkerPool(Config{WorkerCount: 4})
	defer wp.Close()

	var ran atomic.Int32
	room := wp.CreateRoom(100)
	for i := 0; i < 100; i++ {
		room.NewTaskWaitForFreeSlot(func() error {
			ran.Add(1)
			return nil
		})
	}

	assert.NoError(t, room.Collect())
	assert.Equal(t, int32(100), ran.Load())
}

func TestRoomJoinsErrors(t *testing.T) {
	wp := NewWorkerPool(Config{WorkerCount: 2})
	defer wp.Close()

	errA := errors.New("a")
	errB := errors.New("b")
	room := wp.CreateRoom(3)
	room.NewTaskWaitForFreeSlot(func() error { return errA })
	room.NewTaskWaitForFreeSlot(func() error { return nil })
	room.NewTaskWaitForFreeSlot(func() error { return errB })

	err := room.Collect()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestNewTaskRoomFull(t *testing.T) {
	wp := NewWorkerPool(Config{WorkerCount: 1})
	defer wp.Close()

	room := wp.CreateRoom(1)
	assert.NoError(t, room.NewTask(func() error { return nil }))
	room.wg.Wait()
	assert.ErrorIs(t, room.NewTask(func() error { return nil }), ErrRoomFull)
	assert.NoError(t, room.Collect())
}

func TestCloseIsIdempotent(t *testing.T) {
	wp := NewWorkerPool(Config{})
	wp.Close()
	wp.Close()
}
