package controller

import (
	"fmt"
	"time"

	"github.com/downfa11-org/duraq/pkg/metrics"
	"github.com/downfa11-org/duraq/pkg/protocol"
	"github.com/downfa11-org/duraq/pkg/queue"
	"github.com/downfa11-org/duraq/util"
)

// OutcomeKind discriminates the result of one handled command.
type OutcomeKind int

const (
	Acknowledged OutcomeKind = iota
	Delivered
	Empty
	Failed
)

// Outcome is the structured result of dispatching one command. Message
// is set for Delivered, Reason for Failed.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	Reason  string
}

// Format renders the outcome as a wire response line.
func (o Outcome) Format() string {
	switch o.Kind {
	case Acknowledged:
		return protocol.FormatOK()
	case Delivered:
		return protocol.FormatMsg(o.Message)
	case Empty:
		return protocol.FormatEmpty()
	default:
		return protocol.FormatError(o.Reason)
	}
}

// CommandHandler translates parsed commands into queue operations. A
// failing command is converted into a Failed outcome for its own client
// and never propagates further.
type CommandHandler struct {
	queue *queue.Queue
}

func NewCommandHandler(q *queue.Queue) *CommandHandler {
	return &CommandHandler{queue: q}
}

func (h *CommandHandler) Handle(cmd protocol.Command) Outcome {
	switch cmd.Kind {
	case protocol.CmdPush:
		return h.handlePush(cmd.Arg)
	case protocol.CmdPull:
		return h.handlePull(cmd.Arg)
	default:
		metrics.CommandErrors.Inc()
		return Outcome{Kind: Failed, Reason: fmt.Sprintf("unknown command: %s", cmd.Kind)}
	}
}

func (h *CommandHandler) handlePush(message string) Outcome {
	start := time.Now()

	ordinal, err := h.queue.Push(message)
	if err != nil {
		util.Error("push failed: %v", err)
		metrics.CommandErrors.Inc()
		return Outcome{Kind: Failed, Reason: err.Error()}
	}

	metrics.MessagesPushed.Inc()
	metrics.PushLatency.Observe(time.Since(start).Seconds())
	metrics.QueueDepth.Set(float64(ordinal + 1))
	util.Debug("pushed message %d (%d bytes)", ordinal, len(message))
	return Outcome{Kind: Acknowledged}
}

func (h *CommandHandler) handlePull(consumerID string) Outcome {
	message, ok, err := h.queue.Pull(consumerID)
	if err != nil {
		util.Error("pull for %q failed: %v", consumerID, err)
		metrics.CommandErrors.Inc()
		return Outcome{Kind: Failed, Reason: err.Error()}
	}
	if !ok {
		metrics.PullsEmpty.Inc()
		return Outcome{Kind: Empty}
	}

	metrics.MessagesDelivered.Inc()
	util.Debug("delivered message to %q (%d bytes)", consumerID, len(message))
	return Outcome{Kind: Delivered, Message: message}
}
