// Package handlers implements the dashboard's job-management API, a
// thin proxy over the NodeODM task endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/victoryforphil/cursed-next-odm/internal/core/nodeodm"
)

type JobsHandler struct {
	client *nodeodm.Client
}

func NewJobsHandler(client *nodeodm.Client) *JobsHandler {
	return &JobsHandler{client: client}
}

// Shared types

type ServerInfoBody struct {
	Version          string `json:"version" doc:"NodeODM version"`
	Engine           string `json:"engine" doc:"Processing engine"`
	EngineVersion    string `json:"engine_version" doc:"Engine version"`
	TaskQueueCount   int    `json:"task_queue_count" doc:"Tasks currently queued"`
	MaxParallelTasks int    `json:"max_parallel_tasks" doc:"Parallel task limit"`
	MaxImages        int    `json:"max_images" doc:"Per-task image limit"`
}

type ServerInfoOutput struct {
	Body ServerInfoBody
}

type ListJobsBody struct {
	Jobs []string `json:"jobs" doc:"UUIDs of all tasks on the processing server"`
}

type ListJobsOutput struct {
	Body ListJobsBody
}

type JobIDInput struct {
	ID string `path:"id" doc:"Task UUID"`
}

type JobInfoBody struct {
	UUID           string  `json:"uuid" doc:"Task UUID"`
	Name           string  `json:"name" doc:"Task name"`
	Status         string  `json:"status" doc:"Task status (queued, running, failed, completed, canceled)"`
	Progress       float64 `json:"progress" doc:"Processing progress (0-100)"`
	ImagesCount    int     `json:"images_count" doc:"Number of input images"`
	ProcessingTime int64   `json:"processing_time" doc:"Processing time in milliseconds"`
	DateCreated    int64   `json:"date_created" doc:"Creation time (unix millis)"`
}

type JobInfoOutput struct {
	Body JobInfoBody
}

type JobOutputInput struct {
	ID   string `path:"id" doc:"Task UUID"`
	Line int    `query:"line" default:"0" minimum:"0" doc:"First console line to return"`
}

type JobOutputOutput struct {
	Body []string
}

type StatusBody struct {
	Status string `json:"status" doc:"Operation result"`
}

type StatusOutput struct {
	Body StatusBody
}

// Handlers

func (h *JobsHandler) ServerInfo(ctx context.Context, _ *struct{}) (*ServerInfoOutput, error) {
	info, err := h.client.Info(ctx)
	if err != nil {
		return nil, huma.Error502BadGateway(err.Error())
	}
	return &ServerInfoOutput{Body: ServerInfoBody{
		Version:          info.Version,
		Engine:           info.Engine,
		EngineVersion:    info.EngineVersion,
		TaskQueueCount:   info.TaskQueueCount,
		MaxParallelTasks: info.MaxParallelTasks,
		MaxImages:        info.MaxImages,
	}}, nil
}

func (h *JobsHandler) List(ctx context.Context, _ *struct{}) (*ListJobsOutput, error) {
	refs, err := h.client.ListTasks(ctx)
	if err != nil {
		return nil, huma.Error502BadGateway(err.Error())
	}
	jobs := make([]string, 0, len(refs))
	for _, r := range refs {
		jobs = append(jobs, r.UUID)
	}
	return &ListJobsOutput{Body: ListJobsBody{Jobs: jobs}}, nil
}

func (h *JobsHandler) Get(ctx context.Context, input *JobIDInput) (*JobInfoOutput, error) {
	info, err := h.client.TaskInfo(ctx, input.ID)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &JobInfoOutput{Body: JobInfoBody{
		UUID:           info.UUID,
		Name:           info.Name,
		Status:         nodeodm.StatusName(info.Status.Code),
		Progress:       info.Progress,
		ImagesCount:    info.ImagesCount,
		ProcessingTime: info.ProcessingTime,
		DateCreated:    info.DateCreated,
	}}, nil
}

func (h *JobsHandler) Output(ctx context.Context, input *JobOutputInput) (*JobOutputOutput, error) {
	lines, err := h.client.TaskOutput(ctx, input.ID, input.Line)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &JobOutputOutput{Body: lines}, nil
}

func (h *JobsHandler) Cancel(ctx context.Context, input *JobIDInput) (*StatusOutput, error) {
	if err := h.client.CancelTask(ctx, input.ID); err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &StatusOutput{Body: StatusBody{Status: "canceled"}}, nil
}

func (h *JobsHandler) Restart(ctx context.Context, input *JobIDInput) (*StatusOutput, error) {
	if err := h.client.RestartTask(ctx, input.ID); err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &StatusOutput{Body: StatusBody{Status: "restarted"}}, nil
}

func (h *JobsHandler) Remove(ctx context.Context, input *JobIDInput) (*StatusOutput, error) {
	if err := h.client.RemoveTask(ctx, input.ID); err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return &StatusOutput{Body: StatusBody{Status: "removed"}}, nil
}

// Create proxies a multipart job submission (images plus an optional
// options JSON field) to the processing server. Multipart streaming
// stays on the plain echo surface.
func (h *JobsHandler) Create(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required")
	}

	var images []nodeodm.Image
	files := form.File["images"]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no images provided")
	}
	opened := make([]interface{ Close() error }, 0, len(files))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "read image "+fh.Filename)
		}
		opened = append(opened, f)
		images = append(images, nodeodm.Image{Name: fh.Filename, Data: f})
	}

	var options []nodeodm.TaskOption
	if raw := c.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &options); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid options JSON")
		}
	}

	resp, err := h.client.NewTask(c.Request().Context(), c.FormValue("name"), options, images)
	if err != nil {
		log.Error().Err(err).Msg("task submission failed")
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"uuid": resp.UUID})
}
