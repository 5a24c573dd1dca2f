package core

const ResetFeatureName = "Reset"

type ResetType string

const (
	ResetTypeHard ResetType = "Hard"
	ResetTypeSoft ResetType = "Soft"
)

type ResetRequest struct {
	Type ResetType `json:"type"`
}

func (r ResetRequest) GetFeatureName() string {
	return ResetFeatureName
}

func NewResetRequest(resetType ResetType) *ResetRequest {
	if resetType != ResetTypeHard {
		resetType = ResetTypeSoft
	}
	return &ResetRequest{Type: resetType}
}
