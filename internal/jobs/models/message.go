package models

import "encoding/json"

// Dispatch is the work-queue message placed on the queue when a job is
// submitted (and again when the reconciler requeues a stalled one). The
// schema is fixed; consumers tolerate redelivery, so the same message may
// be seen more than once.
type Dispatch struct {
	InputRef  string `json:"input_reference"`
	OutputRef string `json:"output_reference"`
	JobID     int64  `json:"job_id"`
}

func (d Dispatch) Encode() ([]byte, error) {
	return json.Marshal(d)
}

func DecodeDispatch(data []byte) (Dispatch, error) {
	var d Dispatch
	if err := json.Unmarshal(data, &d); err != nil {
		return Dispatch{}, err
	}
	if d.JobID <= 0 || d.InputRef == "" || d.OutputRef == "" {
		return Dispatch{}, ErrInvalidArgument
	}
	return d, nil
}
