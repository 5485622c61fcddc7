package models

type GradeRequest struct {
	Id   string `json:"id"`
	Task string `json:"task"`
	// object prefix of the submission files in the bucket
	Prefix string `json:"prefix"`
}

type CheckStatus struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

type GradeResponse struct {
	Id       string        `json:"id"`
	ReportId string        `json:"report_id"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Checks   []CheckStatus `json:"checks"`
	// object names of uploaded logs
	Logs []string `json:"logs,omitempty"`
}
