package model

import "time"

const (
	// Network and MetaID are constant for every generated observation.
	Network = "array_of_things_chicago"
	MetaID  = 1

	// DefaultPartitionKey is the partition key used when none is configured.
	DefaultPartitionKey = "arbitrary"
)

// Measurement is one property reading inside an observation.
type Measurement struct {
	Property string
	Value    int
}

// Observation is a single simulated reading for one (node, observation type) pair.
type Observation struct {
	Timestamp time.Time
	Network   string
	MetaID    int
	NodeID    int
	Sensor    string
	// Data keeps catalog property order so the payload is stable.
	Data []Measurement
}

// IngestionRecord is the wire unit submitted to a sink.
type IngestionRecord struct {
	Data         []byte
	PartitionKey string
}

// RecordStatus is the sink's verdict for one submitted record.
// An empty ErrorCode means the record was accepted.
type RecordStatus struct {
	ErrorCode    string
	ErrorMessage string
}

// Failed reports whether the sink rejected the record.
func (s RecordStatus) Failed() bool {
	return s.ErrorCode != ""
}

// BatchResult is the sink's answer to a PutRecords call.
// Records[i] always describes batch[i] of the submitted batch.
type BatchResult struct {
	FailedCount int
	Records     []RecordStatus
}

// FailedRecords returns the records of batch whose status in r signals failure,
// keeping their original relative order.
func (r BatchResult) FailedRecords(batch []IngestionRecord) []IngestionRecord {
	var failed []IngestionRecord
	for i, status := range r.Records {
		if i >= len(batch) {
			break
		}
		if status.Failed() {
			failed = append(failed, batch[i])
		}
	}
	return failed
}

// FirstErrorCode returns the first non-empty error code, for logging.
func (r BatchResult) FirstErrorCode() string {
	for _, status := range r.Records {
		if status.Failed() {
			return status.ErrorCode
		}
	}
	return ""
}

// AllFailed builds a result that marks every one of n records as failed with code.
func AllFailed(n int, code, message string) BatchResult {
	res := BatchResult{FailedCount: n, Records: make([]RecordStatus, n)}
	for i := range res.Records {
		res.Records[i] = RecordStatus{ErrorCode: code, ErrorMessage: message}
	}
	return res
}

// CycleReport describes one finished production cycle.
type CycleReport struct {
	Cycle           int64         `json:"cycle"`
	At              time.Time     `json:"at"`
	Batch           int           `json:"batch"`
	Accepted        int           `json:"accepted"`
	Total           int64         `json:"total"`
	Attempts        int           `json:"attempts"`
	Retries         int           `json:"retries"`
	Outstanding     int           `json:"outstanding"`
	TransportErrors int           `json:"transport_errors"`
	Elapsed         time.Duration `json:"elapsed_ns"`
	Error           string        `json:"error,omitempty"`
}
