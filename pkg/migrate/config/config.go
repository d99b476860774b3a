package config

const (
	// DefaultBatchSize : progress reporting granularity, has no
	// transactional meaning
	DefaultBatchSize = 1000
	// DefaultReportDir : where failure reports and replay scripts land
	DefaultReportDir = "./reports"
)

// Config : configuration for the job
type Config[S any, T any] struct {
	// MaxConcurrency : bounded worker pool size across tables,
	// 1 means strictly sequential. Within a table rows are always sequential.
	MaxConcurrency int `json:"max_concurrency" mapstructure:"max_concurrency"`
	// BatchRecordSize : rows per progress report batch
	BatchRecordSize int `json:"max_batch_record_size" mapstructure:"batch_size"`
	// SkipOnError : continue past row failures instead of aborting the
	// whole table on the first bad row. Nil means unset, ApplyDefaults
	// fills in true.
	SkipOnError *bool `json:"skip_on_error" mapstructure:"skip_on_error"`
	// ReportDir : base directory for run artifacts
	ReportDir    string `json:"report_dir" mapstructure:"report_dir"`
	SourceConfig S      `json:"source" mapstructure:"source"`
	Target       T      `json:"target" mapstructure:"target"`
}

// ApplyDefaults : fills the zero-valued knobs with their documented defaults
func (c *Config[S, T]) ApplyDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 1
	}
	if c.BatchRecordSize <= 0 {
		c.BatchRecordSize = DefaultBatchSize
	}
	if c.ReportDir == "" {
		c.ReportDir = DefaultReportDir
	}
	if c.SkipOnError == nil {
		skip := true
		c.SkipOnError = &skip
	}
}
