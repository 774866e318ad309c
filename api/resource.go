// Package api serves the control channel of the publisher.
package api

import (
	"net/http"

	"github.com/ecociel/autopublish/domain"
	"github.com/ecociel/autopublish/uc"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/emicklei/go-restful/v3/log"
)

type Resource struct {
	command uc.CommandUseCase
}

func NewResource(command uc.CommandUseCase) *Resource {
	return &Resource{command: command}
}

// WebService routes every control command under /control.
func (r *Resource) WebService() *restful.WebService {
	ws := new(restful.WebService)
	ws.Path("/control").
		Produces(restful.MIME_JSON)

	ws.Route(ws.POST("/commands").To(r.dispatch).
		Consumes(restful.MIME_JSON).
		Doc("run a control command").
		Reads(domain.Command{}).
		Writes(domain.CommandResponse{}))
	ws.Route(ws.GET("/status").To(r.fixed(domain.CmdGetQueueStatus)).
		Doc("queue status").
		Writes(domain.CommandResponse{}))
	ws.Route(ws.POST("/publish/start").To(r.fixed(domain.CmdStartPublish)).
		Doc("start publishing the queued drafts").
		Writes(domain.CommandResponse{}))
	ws.Route(ws.POST("/publish/stop").To(r.fixed(domain.CmdStopPublish)).
		Doc("stop publishing and drop the queue").
		Writes(domain.CommandResponse{}))
	ws.Route(ws.POST("/queue/fetch").To(r.fixed(domain.CmdFetchQueue)).
		Doc("poll the backend queue now").
		Writes(domain.CommandResponse{}))
	return ws
}

func (r *Resource) dispatch(req *restful.Request, resp *restful.Response) {
	var cmd domain.Command
	if err := req.ReadEntity(&cmd); err != nil {
		r.write(resp, http.StatusBadRequest, domain.CommandResponse{Success: false, Message: "invalid command: " + err.Error()})
		return
	}
	r.run(req, resp, cmd)
}

func (r *Resource) fixed(t domain.CommandType) restful.RouteFunction {
	return func(req *restful.Request, resp *restful.Response) {
		r.run(req, resp, domain.Command{Type: t})
	}
}

func (r *Resource) run(req *restful.Request, resp *restful.Response, cmd domain.Command) {
	out := r.command(req.Request.Context(), cmd)
	if cmd.Type != domain.CmdKeepAlive && cmd.Type != domain.CmdGetQueueStatus {
		log.Printf("control %s: success=%v %s", cmd.Type, out.Success, out.Message)
	}
	// Refusals are answers, not transport errors.
	r.write(resp, http.StatusOK, out)
}

func (r *Resource) write(resp *restful.Response, status int, out domain.CommandResponse) {
	if err := resp.WriteHeaderAndEntity(status, out); err != nil {
		log.Printf("write control response: %v", err)
	}
}
