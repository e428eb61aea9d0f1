package agent

import (
	"errors"

	"scout/internal/tool"
)

// Errors returned by Ask. All of them are fatal for the question: nothing is
// committed to history when one is returned.
var (
	// ErrUnknownTool: the model asked for a tool that is not registered.
	ErrUnknownTool = tool.ErrUnknownTool

	// ErrInvalidToolArguments: the model's arguments do not match the tool's
	// input schema.
	ErrInvalidToolArguments = tool.ErrInvalidArguments

	// ErrSchemaValidation: the final answer does not match the output schema.
	ErrSchemaValidation = errors.New("answer failed schema validation")

	// ErrToolLoopExceeded: the model was still requesting tools when the
	// round limit was reached.
	ErrToolLoopExceeded = errors.New("tool loop exceeded")

	// ErrProtocolViolation: the model's response breaks the tool-call
	// protocol, for example by reusing a correlation id.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrAnswerRejected: a BeforeAnswerAccepted hook denied the answer.
	ErrAnswerRejected = errors.New("answer rejected")

	// ErrEmptyQuery is returned for blank questions.
	ErrEmptyQuery = errors.New("query is empty")
)
