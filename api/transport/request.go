package transport

import "github.com/fastygo/taskhub/domain"

type RegisterRequest = domain.Registration

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TaskCreateRequest has no owner field; ownership comes from the credential.
type TaskCreateRequest = domain.NewTask

// TaskUpdateRequest decodes with partial-patch semantics.
type TaskUpdateRequest = domain.TaskPatch

type ChatRequest struct {
	Prompt string `json:"prompt"`
}
