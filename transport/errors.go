package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-spine/core"
)

// stage names the step of a downstream call that failed. It decides the
// category, status and spine text code of the resulting error.
type stage string

const (
	stageConfigure stage = "configure"
	stageEncode    stage = "encode"
	stageBuild     stage = "build"
	stageSend      stage = "send"
	stageRead      stage = "read"
	stageStatus    stage = "status"
)

func (s stage) category() goerrors.Category {
	switch s {
	case stageBuild:
		return goerrors.CategoryBadInput
	case stageSend, stageRead, stageStatus:
		return goerrors.CategoryExternal
	default:
		return goerrors.CategoryInternal
	}
}

func (s stage) status() int {
	switch s.category() {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s stage) textCode() string {
	switch s.category() {
	case goerrors.CategoryBadInput:
		return core.ErrorBadInput
	case goerrors.CategoryExternal:
		return core.ErrorExecutionFailed
	default:
		return core.ErrorInternal
	}
}

// downstreamError builds the error for a failed downstream step. The stage is
// always recorded in metadata next to whatever the caller knows.
func downstreamError(s stage, cause error, message string, metadata map[string]any) error {
	fields := map[string]any{"stage": string(s)}
	for key, value := range metadata {
		fields[key] = value
	}
	var err *goerrors.Error
	if cause == nil {
		err = goerrors.New(message, s.category())
	} else {
		err = goerrors.Wrap(cause, s.category(), message)
	}
	return err.
		WithCode(s.status()).
		WithTextCode(s.textCode()).
		WithMetadata(fields)
}
