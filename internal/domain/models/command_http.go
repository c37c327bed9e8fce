package models

// CommandContextRequest mirrors RequestContext on the wire.
type CommandContextRequest struct {
	Confirmed         bool   `json:"confirmed"`
	ConfirmationToken string `json:"confirmationToken" validate:"omitempty,uuid"`
	ExecuteConfirmed  bool   `json:"executeConfirmed"`
}

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Command   string                `json:"command" validate:"required,max=500"`
	UserID    string                `json:"userId" default:"anonymous" validate:"max=64"`
	SessionID string                `json:"sessionId" default:"default" validate:"max=64"`
	Context   CommandContextRequest `json:"context"`
}

// Envelope converts the request into the domain envelope.
func (r *CommandRequest) Envelope() Envelope {
	return Envelope{
		Command:   r.Command,
		UserID:    r.UserID,
		SessionID: r.SessionID,
		Context: RequestContext{
			Confirmed:         r.Context.Confirmed,
			ConfirmationToken: r.Context.ConfirmationToken,
			ExecuteConfirmed:  r.Context.ExecuteConfirmed,
		},
	}
}

// HistoryRequest is bound from GET /api/sessions/:id/history.
type HistoryRequest struct {
	SessionID string `param:"id" validate:"required,max=64"`
	Limit     int    `query:"limit" default:"10" validate:"gte=1,lte=50"`
}
