package natsbus

import "fmt"

// Topic patterns for the event stream.

func TopicProjectEvents(projectID string) string {
	return fmt.Sprintf("events.project.%s", projectID)
}

func TopicRoundEvents(projectID string, roundNum int) string {
	return fmt.Sprintf("events.project.%s.round.%d", projectID, roundNum)
}

func TopicPersonaEvents(persona string) string {
	return fmt.Sprintf("events.persona.%s", persona)
}

func TopicCommentary(projectID string) string {
	return fmt.Sprintf("commentary.%s", projectID)
}

const (
	TopicEventsAll      = "events.>"
	TopicEventsProjects = "events.project.*"
	TopicEventsPersonas = "events.persona.*"
)
