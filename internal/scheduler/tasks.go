package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadForecastRecompute = "leads.forecast.recompute"

const TaskFollowupNotify = "tasks.followup.notify"

type LeadForecastRecomputePayload struct {
	LeadID string `json:"leadId"`
}

type FollowupNotifyPayload struct {
	LeadID         string `json:"leadId"`
	ConversationID string `json:"conversationId"`
	Channel        string `json:"channel"`
	Count          int    `json:"count"`
}

func NewLeadForecastRecomputeTask(payload LeadForecastRecomputePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadForecastRecompute, data), nil
}

func ParseLeadForecastRecomputePayload(task *asynq.Task) (LeadForecastRecomputePayload, error) {
	var payload LeadForecastRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadForecastRecomputePayload{}, err
	}
	return payload, nil
}

func NewFollowupNotifyTask(payload FollowupNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowupNotify, data), nil
}

func ParseFollowupNotifyPayload(task *asynq.Task) (FollowupNotifyPayload, error) {
	var payload FollowupNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowupNotifyPayload{}, err
	}
	return payload, nil
}
