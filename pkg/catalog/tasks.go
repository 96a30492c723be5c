package catalog

import (
	"net/http"

	"github.com/pavelpascari/fetchstate/pkg/fetchstate"
)

// Task is a to-do entry.
type Task struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TasksPath is the tasks collection endpoint.
const TasksPath = "/tasks.json"

type taskBody struct {
	Text string `json:"text"`
}

// Tasks lists the stored tasks.
func Tasks() fetchstate.Descriptor[[]Task] {
	return fetchstate.Descriptor[[]Task]{
		Request: fetchstate.Request{Method: http.MethodGet, Path: TasksPath},
		Transform: fetchstate.JSON(func(raw map[string]taskBody) ([]Task, error) {
			return entries(raw, func(key string, t taskBody) Task {
				return Task{ID: key, Text: t.Text}
			}), nil
		}),
		ErrorMessage: firebaseMessage(),
	}
}

// CreateTask stores a task with text and resolves to the created task.
func CreateTask(text string) fetchstate.Descriptor[Task] {
	key := createdKey()

	return fetchstate.Descriptor[Task]{
		Request: fetchstate.Request{Method: http.MethodPost, Path: TasksPath, Body: taskBody{Text: text}},
		Transform: func(payload []byte) (Task, error) {
			id, err := key(payload)
			if err != nil {
				return Task{}, err
			}
			return Task{ID: id, Text: text}, nil
		},
		ErrorMessage: firebaseMessage(),
	}
}
