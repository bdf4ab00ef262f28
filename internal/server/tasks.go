package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ccp-p/shadow-caption/pkg/models"
)

// 任务状态
const (
	TaskPending = "pending"
	TaskRunning = "running"
	TaskSuccess = "success"
	TaskFailed  = "failed"
)

// Task 字幕生成任务
type Task struct {
	ID        string         `json:"task_id"`
	Status    string         `json:"status"`
	VideoURL  string         `json:"video_url"`
	Result    *models.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TaskStore 使用 sync.Map 来安全地并发读写任务
type TaskStore struct {
	tasks sync.Map
	wg    sync.WaitGroup
}

// NewTaskStore 创建任务存储
func NewTaskStore() *TaskStore {
	return &TaskStore{}
}

// Create 创建一个新任务并存储
func (s *TaskStore) Create(videoURL string) *Task {
	now := time.Now()
	task := &Task{
		ID:        uuid.New().String(),
		Status:    TaskPending,
		VideoURL:  videoURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tasks.Store(task.ID, task)
	return task
}

// Get 获取任务快照
func (s *TaskStore) Get(taskID string) (Task, bool) {
	value, ok := s.tasks.Load(taskID)
	if !ok {
		return Task{}, false
	}
	return *value.(*Task), true
}

// update 以写时复制的方式更新任务，读者拿到的快照不会被并发修改
func (s *TaskStore) update(taskID string, fn func(t *Task)) {
	value, ok := s.tasks.Load(taskID)
	if !ok {
		return
	}
	next := *value.(*Task)
	fn(&next)
	next.UpdatedAt = time.Now()
	s.tasks.Store(taskID, &next)
}

// Run 在后台执行任务函数并记录状态
func (s *TaskStore) Run(taskID string, fn func() (*models.Result, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.update(taskID, func(t *Task) { t.Status = TaskRunning })

		result, err := fn()
		s.update(taskID, func(t *Task) {
			if err != nil {
				t.Status = TaskFailed
				t.Error = err.Error()
				return
			}
			t.Status = TaskSuccess
			t.Result = result
		})
	}()
}

// Wait 等待所有后台任务结束
func (s *TaskStore) Wait() {
	s.wg.Wait()
}
