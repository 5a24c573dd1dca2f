package core

const GetConfigurationFeatureName = "GetConfiguration"

// GetConfigurationRequest an empty key list asks for every configuration key.
type GetConfigurationRequest struct {
	Key []string `json:"key,omitempty"`
}

func (r GetConfigurationRequest) GetFeatureName() string {
	return GetConfigurationFeatureName
}

func NewGetConfigurationRequest(key []string) *GetConfigurationRequest {
	return &GetConfigurationRequest{Key: key}
}
