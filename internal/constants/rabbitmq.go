package constants

// Queue names
const (
	QueueScrapeTasks         = "scrape_tasks_estate"
	QueueProcessedProperties = "processed_properties"
)

// Routing keys
const (
	RoutingKeyScrapeTasks         = "estate.scrape.tasks"
	RoutingKeyProcessedProperties = "db.properties.save"
	RoutingKeyRunReports          = "notify.run.report"
)

const MainExchange = "parser_exchange"

const (
	FinalDLXExchange   = "scrape_tasks_final_dlx"
	FinalDLQ           = "scrape_tasks_final_dlq"
	FinalDLQRoutingKey = "scrape_tasks.dlq.key"
)

const (
	RetryTTL   = 10000 // 10 seconds
	MaxRetries = 3
)

// Task queue priority ceiling, bound via x-max-priority.
const TaskPriorityLevels = 4

// Event headers for messages on the wire.
const (
	EventTypeScrapeTask        = "ScrapeTaskEvent"
	EventTypeProcessedProperty = "ProcessedPropertyEvent"
	EventTypeRunReport         = "ScrapeRunReportEvent"
	EventVersion               = "1.0.0"
)
