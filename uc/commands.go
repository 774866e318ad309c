package uc

import (
	"context"
	"fmt"

	"github.com/ecociel/autopublish/domain"
)

// QueueController is the part of the queue manager the control channel
// drives.
type QueueController interface {
	Poll(ctx context.Context) (int, error)
	Start() error
	Stop()
	Status() domain.QueueStatus
}

type CommandUseCase = func(ctx context.Context, cmd domain.Command) domain.CommandResponse

func MakeCommandUseCase(q QueueController) CommandUseCase {
	return func(ctx context.Context, cmd domain.Command) domain.CommandResponse {
		switch cmd.Type {
		case domain.CmdKeepAlive:
			return domain.CommandResponse{Success: true}
		case domain.CmdGetQueueStatus:
			s := q.Status()
			n := s.QueueLength
			return domain.CommandResponse{Success: true, QueueLength: &n, Status: &s}
		case domain.CmdStartPublish:
			if err := q.Start(); err != nil {
				return failure(err)
			}
			return domain.CommandResponse{Success: true, Message: "publishing started"}
		case domain.CmdStopPublish:
			q.Stop()
			return domain.CommandResponse{Success: true, Message: "publishing stopped"}
		case domain.CmdFetchQueue:
			n, err := q.Poll(ctx)
			if err != nil {
				return failure(err)
			}
			return domain.CommandResponse{Success: true, QueueLength: &n}
		}
		return failure(fmt.Errorf("unknown command %q", cmd.Type))
	}
}

func failure(err error) domain.CommandResponse {
	return domain.CommandResponse{Success: false, Message: err.Error()}
}
