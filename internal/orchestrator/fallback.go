package orchestrator

import "strings"

// Fixed plan templates used when the planner agent is unavailable or
// returns unparseable text. Matched by keyword against the task text.
var fallbackTemplates = map[string][]planItem{
	"todo": {
		{Title: "Create Todo Component", Description: "Build the main todo list component with add, toggle and delete."},
		{Title: "Add State Management", Description: "Wire up state for todo items, filters and persistence."},
		{Title: "Add Styling and UI", Description: "Style the todo list with a clean, responsive layout."},
		{Title: "Add Backend API", Description: "Expose a small REST API for creating and listing todos."},
	},
	"blog": {
		{Title: "Create Post List", Description: "Render a list of posts with title, excerpt and date."},
		{Title: "Create Post Detail Page", Description: "Show a full post with formatted body content."},
		{Title: "Add Styling and Layout", Description: "Apply typography and layout suited to long-form reading."},
		{Title: "Add Content API", Description: "Serve posts from a simple backend endpoint."},
	},
	"landing": {
		{Title: "Create Hero Section", Description: "Build the hero with headline, subtext and call to action."},
		{Title: "Add Feature Sections", Description: "Lay out feature highlights with icons and copy."},
		{Title: "Add Styling and Responsiveness", Description: "Polish the page across breakpoints."},
		{Title: "Add Signup Form", Description: "Capture emails with validation and a thank-you state."},
	},
	"counter": {
		{Title: "Create Counter Component", Description: "Build a counter with increment and decrement controls."},
		{Title: "Add State Management", Description: "Track the count and support reset."},
		{Title: "Add Styling and UI", Description: "Style the counter with clear affordances."},
		{Title: "Add Persistence", Description: "Persist the count across reloads."},
	},
}

var genericTemplate = []planItem{
	{Title: "Create Core Component", Description: "Build the main component delivering the core feature."},
	{Title: "Add State Management", Description: "Wire up application state and data flow."},
	{Title: "Add Styling and UI", Description: "Style the interface with a clean, responsive layout."},
	{Title: "Add Backend API", Description: "Expose the backend endpoints the frontend needs."},
}

// Checked in a fixed order so tasks matching several keywords resolve
// deterministically.
var fallbackKeywords = []string{"todo", "blog", "landing", "counter"}

func fallbackPlan(task string) []planItem {
	lower := strings.ToLower(task)
	for _, keyword := range fallbackKeywords {
		if strings.Contains(lower, keyword) {
			return fallbackTemplates[keyword]
		}
	}
	return genericTemplate
}
