package types

// CloudWatch metric names and dimensions emitted by the scheduled jobs.
const (
	// Metric Names
	MetricScrapeSuccess       = "ScrapeSuccess"
	MetricScrapeFailure       = "ScrapeFailure"
	MetricGaragesScraped      = "GaragesScraped"
	MetricReadingsStored      = "ReadingsStored"
	MetricReadingsFailed      = "ReadingsFailed"
	MetricScrapeDuration      = "ScrapeDuration"
	MetricForecastRefreshed   = "ForecastRefreshed"
	MetricForecastSkipped     = "ForecastSkipped"
	MetricForecastGarageFails = "ForecastGarageFailures"
	MetricReadingsArchived    = "ReadingsArchived"

	// Dimension Keys
	DimJob    = "Job"
	DimSource = "Source"

	// MetricNamespace is the default CloudWatch namespace.
	MetricNamespace = "ParkWatch"
)
