package http

import (
	"errors"
	"net/http"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/domain/scoring"
)

// errorPayload is the body of every error sent over HTTP or the websocket.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{domain.ErrSessionNotFound, "SESSION_NOT_FOUND", http.StatusNotFound},
	{domain.ErrParticipantNotFound, "PARTICIPANT_NOT_FOUND", http.StatusNotFound},
	{domain.ErrQuizNotFound, "QUIZ_NOT_FOUND", http.StatusNotFound},
	{domain.ErrQuestionNotFound, "QUESTION_NOT_FOUND", http.StatusNotFound},
	{domain.ErrOptionNotFound, "OPTION_NOT_FOUND", http.StatusNotFound},
	{domain.ErrInvalidNickname, "INVALID_NICKNAME", http.StatusBadRequest},
	{scoring.ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{domain.ErrQuestionNotStarted, "QUESTION_NOT_STARTED", http.StatusConflict},
	{domain.ErrAlreadyAnswered, "ALREADY_ANSWERED", http.StatusConflict},
}

// toErrorPayload maps known errors to a stable code and HTTP status.
func toErrorPayload(err error) (errorPayload, int) {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return errorPayload{Code: c.code, Message: err.Error()}, c.status
		}
	}
	return errorPayload{Code: "INTERNAL", Message: "internal error"}, http.StatusInternalServerError
}
