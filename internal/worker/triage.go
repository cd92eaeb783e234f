package worker

import "github.com/victortong-git/soc-lite-aws-sub002/internal/models"

// escalationThreshold is the minimum severity that raises an escalation.
const escalationThreshold = 4

// Decision is the triage outcome for one analysis result.
type Decision struct {
	TaskStatus  string
	EventStatus string
	Escalate    bool
}

// Triage maps a severity rating to the statuses the target should take.
//
//	0-2  benign or low risk: close the events, complete the task
//	3    medium: complete the task but keep the events open to monitor
//	4-5  high or critical: hold the task in review and escalate
func Triage(severity int) Decision {
	switch {
	case severity <= 2:
		return Decision{
			TaskStatus:  models.TaskStatusCompleted,
			EventStatus: models.EventStatusClosed,
		}
	case severity == 3:
		return Decision{
			TaskStatus:  models.TaskStatusCompleted,
			EventStatus: models.EventStatusOpen,
		}
	default:
		return Decision{
			TaskStatus:  models.TaskStatusInReview,
			EventStatus: models.EventStatusOpen,
			Escalate:    true,
		}
	}
}
