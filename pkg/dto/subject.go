package dto

type SubjectResponse struct {
	SubjectID      string `json:"subject_id"`
	DisplayName    string `json:"display_name"`
	ReferenceCount int    `json:"reference_count"`
	CreatedAt      string `json:"created_at"`
}

type SubjectListResponse struct {
	Subjects []SubjectResponse `json:"subjects"`
	Total    int               `json:"total"`
}
