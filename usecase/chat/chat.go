// Package chat answers prompts with a canned reply. No model is called.
package chat

import (
	"fmt"
	"strings"

	"github.com/fastygo/taskhub/domain"
)

const replyTemplate = "Demo AI Response:\n\n" +
	"You said: \"%s\".\n\n" +
	"This service is running in demo mode, so no external AI API is called. " +
	"The request still travelled the full path: client, router, handler, response.\n\n" +
	"A real model can be plugged in behind this same endpoint later."

// UseCase is stateless; the zero value is ready to use.
type UseCase struct{}

func New() *UseCase {
	return &UseCase{}
}

// Reply embeds the prompt verbatim into the fixed template.
func (uc *UseCase) Reply(prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.ErrPromptRequired
	}
	return fmt.Sprintf(replyTemplate, prompt), nil
}
