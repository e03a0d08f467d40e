package amqp

import (
	"encoding/json"
	"fmt"

	"github.com/dvloznov/finance-analyzer/internal/jobs"
)

// encodeJob converts the job to its JSON message body.
func encodeJob(job *jobs.ExtractDocumentJob) ([]byte, error) {
	return json.Marshal(job)
}

// decodeJob reads a message body. A body without a GCS URI is rejected.
func decodeJob(data []byte) (*jobs.ExtractDocumentJob, error) {
	var job jobs.ExtractDocumentJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	if job.GCSURI == "" {
		return nil, fmt.Errorf("job %q has no gcs_uri", job.JobID)
	}
	return &job, nil
}
